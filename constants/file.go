package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for upload, mapped to their MIME type.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt returns the MIME type for an allowed extension, or "" if unsupported.
func MimeForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsPDF reports whether ext names a PDF.
func IsPDF(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}
