// Package textenc determines the text encoding of an extracted CSV member by
// attempting a fixed ordered list of candidate encodings and accepting the
// first that decodes a sample cleanly. Decoding readers are built on
// golang.org/x/text so the rest of the pipeline always sees UTF-8.
package textenc

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Candidate is one entry in the detection fallback list. A nil Encoding means
// the bytes are used as-is (UTF-8).
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// Candidates is the fixed detection order. Note that latin1 accepts every
// byte value, so in practice detection terminates there for non-UTF-8 input;
// the later entries are kept to mirror the published fallback list.
var Candidates = []Candidate{
	{"utf-8", nil},
	{"latin1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// Detect returns the first candidate that decodes sample without producing
// invalid or replacement output.
func Detect(sample []byte) (Candidate, error) {
	for _, c := range Candidates {
		if decodes(c, sample) {
			return c, nil
		}
	}
	return Candidate{}, fmt.Errorf("could not determine file encoding")
}

func decodes(c Candidate, sample []byte) bool {
	if c.Encoding == nil {
		return utf8.Valid(trimPartialRune(sample))
	}
	decoded, err := c.Encoding.NewDecoder().Bytes(sample)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(decoded, utf8.RuneError)
}

// NewReader wraps r so its bytes are decoded from c's encoding to UTF-8.
func NewReader(r io.Reader, c Candidate) io.Reader {
	if c.Encoding == nil {
		return r
	}
	return transform.NewReader(r, c.Encoding.NewDecoder())
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence so a sample cut
// mid-rune is not misjudged as invalid.
func trimPartialRune(b []byte) []byte {
	n := len(b)
	for i := 1; i <= utf8.UTFMax && i <= n; i++ {
		c := b[n-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			// c starts a multi-byte rune occupying the last i bytes; cut it
			// off when those bytes do not decode on their own.
			if r, _ := utf8.DecodeRune(b[n-i:]); r == utf8.RuneError {
				return b[:n-i]
			}
			return b
		}
	}
	return b
}
