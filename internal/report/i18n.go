package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Language represents a supported localization code.
type Language string

const (
	LangEnglish Language = "en"
	LangGerman  Language = "de"
)

// ErrUnsupportedLanguage is returned when an unknown language code is requested.
var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed locales/en.json locales/de.json
var localeFS embed.FS

var locales = map[Language]map[string]string{}

var languageTags = map[Language]language.Tag{
	LangEnglish: language.English,
	LangGerman:  language.German,
}

func init() {
	mustLoadLocale(LangEnglish, "locales/en.json")
	mustLoadLocale(LangGerman, "locales/de.json")
}

func mustLoadLocale(lang Language, file string) {
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

// Translator resolves localized strings and number formats for one language.
type Translator struct {
	lang    Language
	data    map[string]string
	printer *message.Printer
}

// NewTranslator builds a translator for the requested language, falling back to English.
func NewTranslator(lang Language) Translator {
	data, ok := locales[lang]
	if !ok {
		lang = LangEnglish
		data = locales[LangEnglish]
	}
	return Translator{lang: lang, data: data, printer: message.NewPrinter(languageTags[lang])}
}

func (t Translator) Lang() Language {
	return t.lang
}

// T returns the localized string for the provided key.
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

// Int formats n with the language's digit grouping.
func (t Translator) Int(n int64) string {
	return t.printer.Sprint(number.Decimal(n))
}

// Float formats v with at most prec fraction digits.
func (t Translator) Float(v float64, prec int) string {
	return t.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(prec)))
}

// ParseLanguage converts a flag value into a supported Language.
func ParseLanguage(lang string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "en", "en-us", "en-gb", "english":
		return LangEnglish, nil
	case "de", "de-de", "de-at", "german", "deutsch":
		return LangGerman, nil
	default:
		return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}
