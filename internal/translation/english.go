package translation

import (
	"context"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// IsEnglish reports whether more than half of the non-space characters in
// text are ASCII letters.
func IsEnglish(text string) bool {
	var letters, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return false
	}
	return float64(letters)/float64(total) > 0.5
}

// EnglishOnly passes non-English text through unchanged and forwards the
// rest to next.
func EnglishOnly(next transcript.Translator) transcript.Translator {
	return transcript.TranslatorFunc(func(ctx context.Context, text string) (string, error) {
		if !IsEnglish(text) {
			log.Debug().Str("component", "translation").Str("text", text).Msg("not english, passing through")
			return text, nil
		}
		return next.Translate(ctx, text)
	})
}
