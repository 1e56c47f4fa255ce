// Package label validates debug labels before they reach a backend.
//
// Backends may hand labels to native APIs that expect NUL-terminated
// strings. A label containing NUL or invalid UTF-8 cannot be represented
// there and is rejected before any backend call.
package label

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLen is the longest label accepted, in bytes after normalization.
const MaxLen = 1024

var (
	// ErrNUL is returned for labels containing a NUL byte.
	ErrNUL = errors.New("label: contains NUL byte")

	// ErrEncoding is returned for labels that are not valid UTF-8.
	ErrEncoding = errors.New("label: invalid UTF-8")

	// ErrTooLong is returned for labels longer than MaxLen.
	ErrTooLong = errors.New("label: too long")
)

// Sanitize returns the NFC-normalized form of s or an error describing why
// s cannot be passed to a backend.
func Sanitize(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		return "", fmt.Errorf("%w at offset %d", ErrNUL, i)
	}
	if !utf8.ValidString(s) {
		return "", ErrEncoding
	}
	n := norm.NFC.String(s)
	if len(n) > MaxLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(n))
	}
	return n, nil
}
