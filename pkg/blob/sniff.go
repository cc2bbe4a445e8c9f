package blob

import (
	"net/http"
	"strings"
)

// Classify determines the MIME type of data from its magic signature.
// Client-supplied filenames and declared content types are never consulted.
func Classify(data []byte) string {
	mt := http.DetectContentType(data)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// IsImage reports whether the sniffed type of data is image/*.
func IsImage(data []byte) bool {
	return strings.HasPrefix(Classify(data), "image/")
}

// IsArchive reports whether data sniffs as a zip or Java archive. Jars are
// zip-compatible and may classify as either, so both are accepted.
func IsArchive(data []byte) bool {
	switch Classify(data) {
	case "application/zip", "application/java-archive":
		return true
	}
	return false
}

// ImageSubtype returns the subtype of a sniffed image type ("png" for
// image/png). Empty when data is not an image.
func ImageSubtype(data []byte) string {
	mt := Classify(data)
	if !strings.HasPrefix(mt, "image/") {
		return ""
	}
	return strings.TrimPrefix(mt, "image/")
}
