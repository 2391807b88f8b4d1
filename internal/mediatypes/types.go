package mediatypes

import (
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMimeType is reported for files whose extension is not recognized.
const DefaultMimeType = "application/octet-stream"

// ImageExtensions maps file extensions to whether they are recognized image
// formats. This is the default discovery list of the intake poller.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// DefaultAllowedExtensions is the allow-list enforced by validation.
var DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// MimeTypes maps image extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
}

// Ext returns the lowercased extension of name, including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsImage reports whether ext (lowercase, with dot) is a recognized image.
func IsImage(ext string) bool {
	return ImageExtensions[ext]
}

// GetMimeType returns the MIME type for a given file extension.
// Returns DefaultMimeType if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return DefaultMimeType
}

// ExtensionSet is a case-insensitive set of file extensions.
type ExtensionSet map[string]bool

// NewExtensionSet builds a set from extensions with or without a leading
// dot. Blank entries are skipped.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// ParseExtensionList parses a comma separated list such as "jpg,.PNG".
func ParseExtensionList(list string) ExtensionSet {
	return NewExtensionSet(strings.Split(list, ",")...)
}

// ImageExtensionSet returns ImageExtensions as an ExtensionSet.
func ImageExtensionSet() ExtensionSet {
	set := make(ExtensionSet, len(ImageExtensions))
	for ext := range ImageExtensions {
		set[ext] = true
	}
	return set
}

// Matches reports whether name has an extension in the set.
func (s ExtensionSet) Matches(name string) bool {
	return s[Ext(name)]
}

// Sorted returns the extensions in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ext := range s {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// String renders the set as a comma separated list.
func (s ExtensionSet) String() string {
	return strings.Join(s.Sorted(), ",")
}
