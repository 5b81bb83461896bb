package preview

import (
	"bytes"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"deepdefender/pkg/imgutil"
)

// Note is one line of capture detail shown beside the preview.
type Note struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CaptureNotes summarises the capture metadata embedded in the image: device,
// capture time and location. Images without metadata yield no notes.
func (h *Handle) CaptureNotes() ([]Note, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, err
	}

	values := make(map[string][]string)
	switch h.kind {
	case imgutil.KindJPEG, imgutil.KindTIFF:
		if err := collectExif(bytes.NewReader(data), values); err != nil {
			return nil, err
		}
	case imgutil.KindPNG:
		exifPayload, err := collectPNGText(bytes.NewReader(data), values)
		if err != nil {
			return nil, err
		}
		if exifPayload != nil {
			tags, _, err := exif.GetFlatExifData(exifPayload, nil)
			if err != nil && !errorsIsNoExif(err) {
				return nil, err
			}
			addExifTags(tags, values)
		}
	default:
		return nil, nil
	}

	return buildNotes(values), nil
}

func collectExif(rs io.ReadSeeker, values map[string][]string) error {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if errorsIsNoExif(err) {
			return nil
		}
		return err
	}

	addExifTags(tags, values)
	return nil
}

func addExifTags(tags []exif.ExifTag, values map[string][]string) {
	for _, tag := range tags {
		value := strings.TrimSpace(tag.Formatted)
		if value == "" {
			continue
		}
		values[tag.TagName] = append(values[tag.TagName], value)
	}
}

func errorsIsNoExif(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
