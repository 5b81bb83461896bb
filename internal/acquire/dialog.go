package acquire

import (
	"context"
	"errors"

	"github.com/ncruces/zenity"

	"deepdefender/internal/logging"
	"deepdefender/pkg/imgutil"
)

// Dialog opens the platform's native file chooser restricted to image types.
type Dialog struct {
	Title  string
	Limits Limits

	selectFile func(options ...zenity.Option) (string, error)
}

// NewDialog returns a chooser bound to zenity.
func NewDialog(limits Limits) *Dialog {
	return &Dialog{
		Title:      "Select an image to analyze",
		Limits:     limits,
		selectFile: zenity.SelectFile,
	}
}

// Acquire blocks until the user picks a file or dismisses the chooser.
// Dismissal maps to ErrNoFile.
func (d *Dialog) Acquire(ctx context.Context) (*InputFile, error) {
	path, err := d.selectFile(
		zenity.Context(ctx),
		zenity.Title(d.Title),
		zenity.FileFilters{
			{
				Name:     "Images",
				Patterns: imgutil.ChooserPatterns,
				CaseFold: true,
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrNoFile
		}
		return nil, logging.NewOperationError("acquire.dialog", "", err)
	}
	return PathSource{Path: path, Limits: d.Limits}.Acquire(ctx)
}
