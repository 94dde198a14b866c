package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Language represents a supported summary localization code.
type Language string

const (
	// LangEnglish renders trace summaries in English.
	LangEnglish Language = "en"
	// LangTurkish renders trace summaries in Turkish.
	LangTurkish Language = "tr"
)

// ErrUnsupportedLanguage is returned when an unknown language code is requested.
var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed en.json tr.json
var localeFS embed.FS

var localeFiles = map[Language]string{
	LangEnglish: "en.json",
	LangTurkish: "tr.json",
}

var locales = map[Language]map[string]string{}

func init() {
	for lang, file := range localeFiles {
		data, err := localeFS.ReadFile(file)
		if err != nil {
			panic(fmt.Sprintf("report: load locale %s: %v", lang, err))
		}
		var parsed map[string]string
		if err := json.Unmarshal(data, &parsed); err != nil {
			panic(fmt.Sprintf("report: parse locale %s: %v", lang, err))
		}
		locales[lang] = parsed
	}
}

// Translator resolves localized summary strings for one language.
type Translator struct {
	lang Language
	data map[string]string
}

// NewTranslator builds a translator for the requested language, falling back
// to English for languages without a locale table.
func NewTranslator(lang Language) Translator {
	data, ok := locales[lang]
	if !ok {
		lang = LangEnglish
		data = locales[LangEnglish]
	}
	return Translator{lang: lang, data: data}
}

// Lang returns the active language.
func (t Translator) Lang() Language {
	return t.lang
}

// T returns the localized string for key. Keys missing from the active locale
// fall back to English, then to the key itself so an incomplete locale file
// still yields a readable summary.
func (t Translator) T(key string) string {
	if val, ok := t.data[key]; ok {
		return val
	}
	if t.lang != LangEnglish {
		if val, ok := locales[LangEnglish][key]; ok {
			return val
		}
	}
	return key
}

// Format returns the localized string for key formatted with the given arguments.
func (t Translator) Format(key string, args ...interface{}) string {
	return fmt.Sprintf(t.T(key), args...)
}

// ParseLanguage converts a flag or config value into a supported Language.
// It accepts full locale spellings ("en_US.UTF-8", "tr-TR") as well as the
// bare two-letter codes a trace's general parameters carry.
func ParseLanguage(lang string) (Language, error) {
	code := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(code, "_-."); i >= 0 {
		code = code[:i]
	}
	switch code {
	case "", "en", "english":
		return LangEnglish, nil
	case "tr", "turkish", "türkçe", "turkce":
		return LangTurkish, nil
	default:
		return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}
