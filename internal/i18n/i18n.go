// Package i18n is a flat vi/en message catalog keyed by dot paths.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Locale is a supported language tag
type Locale string

const (
	Vietnamese Locale = "vi"
	English    Locale = "en"

	// DefaultLocale is used when no preference is stored
	DefaultLocale = Vietnamese
)

//go:embed locales/*.yaml
var catalogFS embed.FS

// Translator resolves message paths for the supported locales
type Translator struct {
	catalogs map[Locale]map[string]any
}

// New loads the embedded catalogs
func New() (*Translator, error) {
	t := &Translator{catalogs: make(map[Locale]map[string]any)}
	for _, loc := range []Locale{Vietnamese, English} {
		data, err := catalogFS.ReadFile("locales/" + string(loc) + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s catalog: %w", loc, err)
		}
		catalog := make(map[string]any)
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse %s catalog: %w", loc, err)
		}
		t.catalogs[loc] = catalog
	}
	return t, nil
}

// MustNew is New for package-level wiring
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// ParseLocale maps a raw tag to a supported locale
func ParseLocale(raw string) (Locale, bool) {
	switch Locale(strings.ToLower(strings.TrimSpace(raw))) {
	case Vietnamese:
		return Vietnamese, true
	case English:
		return English, true
	}
	return "", false
}

// T looks path up in the locale's catalog. A missing key, or a path that
// ends on a non-string node, returns path unchanged so gaps stay visible.
// Each {name} in the message is replaced by params[name].
func (t *Translator) T(locale Locale, path string, params map[string]string) string {
	catalog, ok := t.catalogs[locale]
	if !ok {
		catalog = t.catalogs[DefaultLocale]
	}

	var node any = catalog
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return path
		}
		if node, ok = m[part]; !ok {
			return path
		}
	}

	msg, ok := node.(string)
	if !ok {
		return path
	}

	if len(params) == 0 {
		return msg
	}

	// one pass in key order: substituted values are never expanded again
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", params[k])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
