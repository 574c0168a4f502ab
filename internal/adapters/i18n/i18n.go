// Package i18n provides the English and Spanish message catalogs and the
// per-request locale.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Supported locales.
const (
	Spanish = "es"
	English = "en"
)

// Default is used when nothing else matches.
const Default = Spanish

// CookieName stores the visitor's chosen locale.
const CookieName = "gym_locale"

//go:embed locales/*.json
var localeFS embed.FS

// supported is ordered with the default first; the matcher falls back to it.
var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

// Translator resolves dotted message keys against flattened catalogs.
type Translator struct {
	catalogs map[string]map[string]string
}

// New loads the embedded catalogs.
func New() (*Translator, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	t := &Translator{catalogs: make(map[string]map[string]string)}
	for _, e := range entries {
		name := e.Name()
		if path.Ext(name) != ".json" {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		t.catalogs[strings.TrimSuffix(name, ".json")] = flat
	}
	if _, ok := t.catalogs[Default]; !ok {
		return nil, fmt.Errorf("missing default catalog %q", Default)
	}
	return t, nil
}

// MustNew is New for package-level initialisation; it panics on error.
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

// T returns the message for key in locale. Missing keys fall back to the
// default locale and then to the key itself. Extra args are applied with
// fmt.Sprintf.
func (t *Translator) T(locale, key string, args ...any) string {
	msg, ok := t.catalogs[locale][key]
	if !ok {
		msg, ok = t.catalogs[Default][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Has reports whether locale defines key directly.
func (t *Translator) Has(locale, key string) bool {
	_, ok := t.catalogs[locale][key]
	return ok
}

// Keys returns every key defined for locale, sorted.
func (t *Translator) Keys(locale string) []string {
	keys := make([]string, 0, len(t.catalogs[locale]))
	for k := range t.catalogs[locale] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSupported reports whether locale has a catalog.
func IsSupported(locale string) bool {
	return locale == Spanish || locale == English
}

// Toggle returns the other supported locale.
func Toggle(locale string) string {
	if locale == English {
		return Spanish
	}
	return English
}

// Match picks the best supported locale for an Accept-Language header.
func Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// FormatMoney formats amount with the locale's digit grouping.
func FormatMoney(locale string, amount float64) string {
	tag := language.Spanish
	if locale == English {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf("$%.2f", amount)
}

// FormatNumber formats n with the locale's digit grouping.
func FormatNumber(locale string, n int) string {
	tag := language.Spanish
	if locale == English {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf("%d", n)
}

type localeKey struct{}

// WithLocale returns a context carrying locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom returns the request locale, or Default.
func LocaleFrom(ctx context.Context) string {
	if l, ok := ctx.Value(localeKey{}).(string); ok && IsSupported(l) {
		return l
	}
	return Default
}
