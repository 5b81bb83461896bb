package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"deepdefender/pkg/imgutil"
)

// Limits bounds what acquisition accepts.
type Limits struct {
	MaxFileSize int64
}

// PathSource is an explicit file selection by path.
type PathSource struct {
	Path   string
	Limits Limits
}

// Acquire reads the selected file.
func (s PathSource) Acquire(ctx context.Context) (*InputFile, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return nil, ErrNoFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FromPath(path, s.Limits)
}

// FromPath loads the file at path.
func FromPath(path string, limits Limits) (*InputFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if limits.MaxFileSize > 0 && info.Size() > limits.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, max %d)", filepath.Base(path), ErrTooLarge, info.Size(), limits.MaxFileSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return FromReader(filepath.Base(path), "", file, limits)
}

// FromReader drains r into an InputFile. An empty declaredType is resolved
// from the name and the content.
func FromReader(name, declaredType string, r io.Reader, limits Limits) (*InputFile, error) {
	reader := r
	if limits.MaxFileSize > 0 {
		reader = io.LimitReader(r, limits.MaxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if limits.MaxFileSize > 0 && int64(len(data)) > limits.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (max %d bytes)", name, ErrTooLarge, limits.MaxFileSize)
	}

	mediaType := imgutil.NormalizeMediaType(declaredType)
	if mediaType == "" || mediaType == imgutil.OctetStream {
		mediaType = imgutil.DeclaredMediaType(name, data)
	}

	return &InputFile{Name: name, MediaType: mediaType, Data: data}, nil
}

// Upload is a file posted from the browser surface.
type Upload struct {
	Header *multipart.FileHeader
	Limits Limits
}

// Acquire opens and reads the uploaded part.
func (u Upload) Acquire(ctx context.Context) (*InputFile, error) {
	if u.Header == nil {
		return nil, ErrNoFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u.Limits.MaxFileSize > 0 && u.Header.Size > u.Limits.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, max %d)", u.Header.Filename, ErrTooLarge, u.Header.Size, u.Limits.MaxFileSize)
	}

	src, err := u.Header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return FromReader(filepath.Base(u.Header.Filename), u.Header.Header.Get("Content-Type"), src, u.Limits)
}

// Drop is text dropped or pasted onto the terminal. Terminals deliver dropped
// files as one or more shell-quoted paths.
type Drop struct {
	Text   string
	Limits Limits
}

// Acquire loads the first dropped path.
func (d Drop) Acquire(ctx context.Context) (*InputFile, error) {
	paths := ParseDropped(d.Text)
	if len(paths) == 0 {
		return nil, ErrNoFile
	}
	file, err := PathSource{Path: paths[0], Limits: d.Limits}.Acquire(ctx)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dropped path %q: %w", paths[0], err)
	}
	return file, err
}

// ParseDropped splits dropped text into paths. It understands single and
// double quotes, backslash escapes and file:// URIs.
func ParseDropped(text string) []string {
	var (
		paths   []string
		current strings.Builder
		quote   rune
		escaped bool
		started bool
	)

	flush := func() {
		if started {
			paths = append(paths, normalizeDropped(current.String()))
		}
		current.Reset()
		started = false
	}

	for _, r := range text {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			started = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			started = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()

	out := paths[:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeDropped turns a local file:// URI into a path. URIs naming another
// host, or that do not parse, are returned unchanged.
func normalizeDropped(p string) string {
	if !strings.HasPrefix(p, "file://") {
		return p
	}
	u, err := url.Parse(p)
	if err != nil || u.Path == "" {
		return p
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return p
	}
	return u.Path
}
