package constants

import "strings"

// Recognized MIME types for the primary drawing. Enrichment documents are
// looser (the backend re-validates), but the primary must be one of these.
var DrawingMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/tiff":      {},
}

// AllowedExtensions maps drawing file extensions to their MIME type, used
// when the caller supplies a filename instead of a sniffed type.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsDrawingMIME reports whether the given MIME type is a recognized primary
// drawing format. Parameters after ";" are ignored.
func IsDrawingMIME(mimeType string) bool {
	base := strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	_, ok := DrawingMIMETypes[base]
	return ok
}
