package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves the response locale from an explicit query param,
// then the Accept-Language header, then def. Supported values are base
// languages such as "pt" or "en"; the result is always one of them.
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	if len(supported) == 0 {
		return strings.ToLower(def)
	}
	sup := make([]string, len(supported))
	tags := make([]language.Tag, len(supported))
	for i, s := range supported {
		sup[i] = strings.ToLower(s)
		tags[i] = language.Make(sup[i])
	}

	pick := func(lang string) (string, bool) {
		if strings.TrimSpace(lang) == "" {
			return "", false
		}
		tag, err := language.Parse(lang)
		if err != nil {
			return "", false
		}
		base, _ := tag.Base()
		for _, s := range sup {
			if s == base.String() {
				return s, true
			}
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}
	if prefs, _, err := language.ParseAcceptLanguage(acceptLang); err == nil && len(prefs) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(prefs...)
		if conf != language.No && idx >= 0 && idx < len(sup) {
			return sup[idx]
		}
	}
	if v, ok := pick(def); ok {
		return v
	}
	return sup[0]
}
