// Package i18n localizes rider-facing strings. Translations are compiled
// into the binary; unknown languages fall back to English.
package i18n

import (
	"fmt"
	"strings"
)

// DefaultLang is used when a key or language is not found
const DefaultLang = "en"

// Supported lists the languages with a full translation set
var Supported = []string{"en", "fr", "ar"}

// Translate returns the string for key in lang, formatted with args when given.
// An unknown key is returned as is.
func Translate(key, lang string, args ...interface{}) string {
	langMap, ok := translations[key]
	if !ok {
		return key
	}

	tmpl, ok := langMap[Normalize(lang)]
	if !ok {
		tmpl, ok = langMap[DefaultLang]
		if !ok {
			return key
		}
	}

	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Normalize reduces a language tag such as "fr-MA" to its primary subtag
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLang
	}
	return lang
}
