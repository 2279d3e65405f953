package storage

import (
	"net/http"
	"strings"
	"unicode"

	"go-time-archive/pkg/apierror"
)

const maxNameBytes = 255

// ValidateName rejects a single path segment the local filesystem cannot
// hold. Names are never rewritten: archived folders must mirror the originals.
func ValidateName(name string) error {
	switch {
	case name == "":
		return apierror.New("INVALID_FILENAME", "filename cannot be empty", "", http.StatusBadRequest)
	case name == "." || name == "..":
		return apierror.New("INVALID_FILENAME", "filename cannot be current or parent directory", name, http.StatusBadRequest)
	case len(name) > maxNameBytes:
		return apierror.New("INVALID_FILENAME", "filename is too long", name, http.StatusBadRequest)
	case strings.ContainsAny(name, "/\x00"):
		return apierror.New("INVALID_FILENAME", "filename contains a separator or null byte", name, http.StatusBadRequest)
	}

	for _, char := range name {
		if unicode.IsControl(char) {
			return apierror.New("INVALID_FILENAME", "filename contains control characters", name, http.StatusBadRequest)
		}
	}

	return nil
}
