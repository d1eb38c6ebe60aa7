package strokes

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Katakana occupies U+30A1..U+30F6 (plus the iteration marks U+30FD..U+30FE); hiragana sits
// exactly 0x60 below.
const kanaOffset = 0x60

var halfwidthKatakana = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0xFF66, Hi: 0xFF9F, Stride: 1},
	},
}

// Widened sound marks may come out spacing; NFC only composes the combining forms.
func combiningSoundMarks(r rune) rune {
	switch r {
	case 0x309B:
		return 0x3099
	case 0x309C:
		return 0x309A
	}
	return r
}

func katakanaToHiragana(r rune) rune {
	switch {
	case r >= 0x30A1 && r <= 0x30F6:
		return r - kanaOffset
	case r == 0x30FD || r == 0x30FE:
		return r - kanaOffset
	}
	return r
}

// Chains hold buffers, so a fresh one is built per call.
func newScriptTransformer() transform.Transformer {
	return transform.Chain(
		runes.If(runes.In(halfwidthKatakana), transform.Chain(width.Widen, runes.Map(combiningSoundMarks), norm.NFC), nil),
		runes.Map(katakanaToHiragana),
	)
}

// NormalizeScript rewrites katakana (including half-width forms) into hiragana. All other
// characters pass through unchanged, except that each run of invalid UTF-8 bytes becomes a
// single U+FFFD. The function is idempotent.
func NormalizeScript(text string) string {
	if text == "" {
		return text
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	out, _, err := transform.String(newScriptTransformer(), text)
	if err != nil {
		return mapRunes(text)
	}
	return out
}

func mapRunes(text string) string {
	buf := []rune(text)
	for i, r := range buf {
		buf[i] = katakanaToHiragana(r)
	}
	return string(buf)
}
