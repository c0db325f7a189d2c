package i18n

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/ngwarden/resources"
)

const DefaultLanguage = "en"

var state = struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	loaded       map[string]bool
}{
	translations: make(map[string]map[string]string),
	loaded:       make(map[string]bool),
}

func load(lang string) map[string]string {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.loaded[lang] {
		return state.translations[lang]
	}
	state.loaded[lang] = true

	content, err := resources.FS.ReadFile(fmt.Sprintf("i18n/%s.yml", lang))
	if err != nil {
		log.WithError(err).WithField("lang", lang).Errorln("cant load i18n")
		return nil
	}
	translations := make(map[string]string)
	if err := yaml.Unmarshal(content, &translations); err != nil {
		log.WithError(err).WithField("lang", lang).Errorln("cant unmarshal i18n")
		return nil
	}
	state.translations[lang] = translations
	return translations
}

// Get returns the translation of key, falling back to the key itself.
func Get(key, lang string) string {
	if lang == "" || lang == DefaultLanguage {
		return key
	}
	state.mu.RLock()
	translations, loaded := state.translations[lang], state.loaded[lang]
	state.mu.RUnlock()
	if !loaded {
		translations = load(lang)
	}
	if res, ok := translations[key]; ok {
		return res
	}
	log.Tracef(`no translation for key "%s"`, key)
	return key
}
