package acquire

import (
	"context"
	"errors"

	"deepdefender/pkg/imgutil"
)

var (
	// ErrNoFile reports an acquisition event that carried no file. Callers
	// treat it as a no-op.
	ErrNoFile = errors.New("acquire: no file selected")
	// ErrTooLarge reports a file above the configured size limit.
	ErrTooLarge = errors.New("acquire: file exceeds size limit")
)

// InputFile is the user-selected blob plus its declared media type and display name.
type InputFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// Size returns the payload length in bytes.
func (f *InputFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// IsImage reports whether the declared media type belongs to the image family.
func (f *InputFile) IsImage() bool {
	return f != nil && imgutil.IsImageMediaType(f.MediaType)
}

// Source produces an InputFile from some platform-specific selection mechanism.
type Source interface {
	Acquire(ctx context.Context) (*InputFile, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*InputFile, error)

// Acquire calls f(ctx).
func (f SourceFunc) Acquire(ctx context.Context) (*InputFile, error) {
	return f(ctx)
}
