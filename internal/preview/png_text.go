package preview

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// maxTextChunk bounds how much of a single text chunk is read into memory.
const maxTextChunk = 1 << 20

// collectPNGText records text and tIME chunks into values and returns the raw
// eXIf payload, if any.
func collectPNGText(rs io.ReadSeeker, values map[string][]string) ([]byte, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var exifPayload []byte

	br := bufio.NewReader(rs)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytesEqual(sig, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return exifPayload, nil
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(br, chunkType); err != nil {
			return nil, err
		}

		chunkName := string(chunkType)

		switch chunkName {
		case "tEXt", "zTXt", "iTXt":
			if length > maxTextChunk {
				if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
					return nil, err
				}
				continue
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return nil, err
			}
			key, value := splitPNGText(chunkName, data)
			if key != "" {
				values[key] = append(values[key], value)
			}
		case "eXIf":
			if length > maxTextChunk {
				if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
					return nil, err
				}
				continue
			}
			exifPayload = make([]byte, length)
			if _, err := io.ReadFull(br, exifPayload); err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return nil, err
			}
		case "tIME":
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return nil, err
			}
			if stamp := formatPNGTime(data); stamp != "" {
				values["DateTime"] = append(values["DateTime"], stamp)
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return nil, err
			}
		}

		if chunkName == "IEND" {
			return exifPayload, nil
		}
	}
}

// splitPNGText returns the keyword and, for uncompressed tEXt, the text.
func splitPNGText(chunkName string, data []byte) (string, string) {
	idx := indexByte(data, 0)
	if idx <= 0 {
		return "", ""
	}
	key := string(data[:idx])
	if chunkName != "tEXt" {
		return key, ""
	}
	return key, string(data[idx+1:])
}

func formatPNGTime(data []byte) string {
	if len(data) != 7 {
		return ""
	}
	year := binary.BigEndian.Uint16(data[:2])
	return fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d", year, data[2], data[3], data[4], data[5], data[6])
}

func indexByte(data []byte, b byte) int {
	for i, v := range data {
		if v == b {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
