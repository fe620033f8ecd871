package constants

import "strings"

// MediaKind is the coarse kind of an input document.
type MediaKind string

const (
	PDF   MediaKind = "PDF"
	IMAGE MediaKind = "IMAGE"
)

// DocumentClass decides which capture prompt is used.
type DocumentClass string

const (
	Handwritten DocumentClass = "handwritten"
	Digital     DocumentClass = "digital"
)

// ImageExtensions are treated as photographed or scanned (handwritten) documents.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// AllowedExtensions holds every extension the pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// MaxUploadMBDefault bounds a single uploaded document.
const MaxUploadMBDefault = 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat maps a file extension to its media kind. Unknown extensions map to PDF,
// which is how digital documents are sent to the model.
func MapExtToFormat(ext string) MediaKind {
	if _, ok := ImageExtensions[NormalizeExt(ext)]; ok {
		return IMAGE
	}
	return PDF
}

// MediaTypeForExt returns the MIME type sent alongside inline document bytes.
func MediaTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// MaxPDFPages bounds the PDFs sent to a model in a single request.
const MaxPDFPages = 50
