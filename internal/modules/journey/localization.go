package journey

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a display language the journey content is stored in. The
// unsuffixed columns hold BaseLanguage; other languages are optional overrides.
type Language string

const (
	French  Language = "fr"
	English Language = "en"
	Spanish Language = "es"

	BaseLanguage = French
)

var (
	supportedLanguages = []Language{French, English, Spanish}
	languageMatcher    = language.NewMatcher([]language.Tag{language.French, language.English, language.Spanish})
)

// ParseLanguage resolves a raw value ("en", "es-MX", an Accept-Language
// header) to a supported language, or def when nothing matches.
func ParseLanguage(raw string, def Language) Language {
	if def == "" {
		def = BaseLanguage
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(supportedLanguages) {
		return def
	}
	return supportedLanguages[idx]
}

// Localize picks the override for lang when present and non-blank, else base.
func Localize(base string, overrides map[Language]string, lang Language) string {
	if lang == BaseLanguage {
		return base
	}
	if v, ok := overrides[lang]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return base
}
