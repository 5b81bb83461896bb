package imgutil

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ImageFamily is the media-type prefix shared by every previewable type.
const ImageFamily = "image/"

// OctetStream is reported when nothing better is known about a payload.
const OctetStream = "application/octet-stream"

// IsImageMediaType reports whether mediaType belongs to the image family.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), ImageFamily)
}

// DeclaredMediaType resolves the media type a file declares for itself: the
// extension first, then the content.
func DeclaredMediaType(name string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return NormalizeMediaType(byExt)
	}
	if len(data) == 0 {
		return OctetStream
	}
	if kind := SniffBytes(data); kind != KindUnknown {
		return kind.MediaType()
	}
	return NormalizeMediaType(mimetype.Detect(data).String())
}

// NormalizeMediaType lowercases mediaType and drops any parameters.
func NormalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// ChooserPatterns lists the glob patterns offered by native file choosers.
var ChooserPatterns = []string{
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.bmp", "*.tif", "*.tiff",
}
