package constants

import (
	"path/filepath"
	"sort"
	"strings"
)

// AllowedExtensions holds the image extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

// DefaultMaxUploadBytes is the default upload ceiling (200MB).
const DefaultMaxUploadBytes int64 = 200 << 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedFilename reports whether filename carries an allowed image extension.
func IsAllowedFilename(filename string) bool {
	ext := NormalizeExt(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	_, ok := AllowedExtensions[ext]
	return ok
}

// AllowedExtensionList returns the allowed extensions in sorted order.
func AllowedExtensionList() []string {
	out := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
