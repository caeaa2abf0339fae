package text

import (
	"errors"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input has nothing left to speak.
var ErrEmptyText = errors.New("text is empty")

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize cleans pasted or piped input before it is chunked: byte order
// marks are dropped, the text is composed to NFC so a diacritic counts as one
// character however it was typed, line endings become \n and the result is
// trimmed.
func Normalize(s string) (string, error) {
	t := transform.Chain(runes.Remove(runes.Predicate(isBOM)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(lineEndings.Replace(out))
	if out == "" {
		return "", ErrEmptyText
	}
	return out, nil
}

func isBOM(r rune) bool { return r == '\uFEFF' }
