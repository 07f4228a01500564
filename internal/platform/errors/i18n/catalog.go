// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the fallback locale when a requested locale has no catalog.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu     sync.RWMutex
	catalogs       = map[string]*Catalog{}
	matcher        language.Matcher
	matcherLocales []string
)

func init() {
	RegisterCatalog("en-US", NewCatalog("en-US", enUSMessages))
	RegisterCatalog("pt-BR", NewCatalog("pt-BR", ptBRMessages))
}

// NewCatalog creates a catalog for a locale from a code-to-template map.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	return &Catalog{locale: locale, messages: messages}
}

// RegisterCatalog registers or replaces the catalog for a locale.
func RegisterCatalog(locale string, catalog *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = catalog
	rebuildMatcherLocked()
}

// rebuildMatcherLocked rebuilds the language matcher. The base locale is always
// first so it acts as the matcher's default.
func rebuildMatcherLocked() {
	matcherLocales = []string{BaseLocale}
	tags := []language.Tag{language.Make(BaseLocale)}
	for locale := range catalogs {
		if locale == BaseLocale {
			continue
		}
		matcherLocales = append(matcherLocales, locale)
		tags = append(tags, language.Make(locale))
	}
	matcher = language.NewMatcher(tags)
}

// GetCatalog returns the catalog for the given locale.
// Unknown locales resolve through language matching and fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	catalogsMu.RLock()
	defer catalogsMu.RUnlock()

	if c, ok := catalogs[requested]; ok {
		return c
	}

	if tag, err := language.Parse(requested); err == nil && matcher != nil {
		_, index, _ := matcher.Match(tag)
		if index >= 0 && index < len(matcherLocales) {
			if c, ok := catalogs[matcherLocales[index]]; ok {
				return c
			}
		}
	}

	return catalogs[BaseLocale]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so that
// template variables without metadata render as empty.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
