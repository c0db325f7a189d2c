package i18n

import "strings"

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
}

func GetLanguageName(code string) string {
	normalized := strings.ToLower(code)
	if name, ok := languageNames[normalized]; ok {
		return name
	}
	return code
}

// IsSupported reports whether translations for code are bundled.
func IsSupported(code string) bool {
	_, ok := languageNames[strings.ToLower(code)]
	return ok
}
