package strokes

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf8"
)

//go:embed data/strokes.json
var embeddedDictionary []byte

const metaKey = "meta"

var errEmptyDictionary = errors.New("strokes: dictionary contains no entries")

// Dictionary is an immutable character to stroke count table.
type Dictionary struct {
	counts map[string]int
}

// NewDictionary copies the supplied entries. Keys must be single characters and counts positive;
// anything else is dropped.
func NewDictionary(entries map[string]int) *Dictionary {
	counts := make(map[string]int, len(entries))
	for char, count := range entries {
		if count <= 0 || utf8.RuneCountInString(char) != 1 {
			continue
		}
		counts[char] = count
	}
	return &Dictionary{counts: counts}
}

// LoadDictionary decodes the JSON artifact produced by the dictionary builder.
func LoadDictionary(r io.Reader) (*Dictionary, error) {
	if r == nil {
		return nil, errors.New("strokes: dictionary reader is required")
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("strokes: decode dictionary: %w", err)
	}

	entries := make(map[string]int, len(raw))
	for key, value := range raw {
		if key == metaKey {
			continue
		}
		var n float64
		if err := json.Unmarshal(value, &n); err != nil {
			continue
		}
		if n <= 0 || n != math.Trunc(n) {
			continue
		}
		entries[key] = int(n)
	}

	dict := NewDictionary(entries)
	if dict.Len() == 0 {
		return nil, errEmptyDictionary
	}
	return dict, nil
}

// LoadDictionaryFile reads the artifact from a local path.
func LoadDictionaryFile(path string) (*Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("strokes: open dictionary: %w", err)
	}
	defer file.Close()
	return LoadDictionary(file)
}

// EmbeddedDictionary returns the dictionary compiled into the binary.
func EmbeddedDictionary() (*Dictionary, error) {
	return LoadDictionary(bytes.NewReader(embeddedDictionary))
}

// Lookup returns the stroke count for a character. Absence is an expected outcome.
func (d *Dictionary) Lookup(char string) (int, bool) {
	if d == nil {
		return 0, false
	}
	count, ok := d.counts[char]
	return count, ok
}

// Len reports the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.counts)
}
