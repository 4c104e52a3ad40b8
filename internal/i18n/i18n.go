package i18n

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/ngguard/resources"
)

const DefaultLanguage = "en"

var state = struct {
	once            sync.Once
	mu              sync.RWMutex
	translations    map[string]map[string]string
	defaultLanguage string
}{
	translations:    make(map[string]map[string]string),
	defaultLanguage: DefaultLanguage,
}

func load() {
	content, err := resources.FS.ReadFile("i18n/translations.yml")
	if err != nil {
		log.WithField("object", "i18n").WithError(err).Errorln("cant load i18n")
		return
	}
	translations := make(map[string]map[string]string)
	if err := yaml.Unmarshal(content, &translations); err != nil {
		log.WithField("object", "i18n").WithError(err).Errorln("cant unmarshal i18n")
		return
	}
	state.translations = translations
}

// SetDefaultLanguage is used when a lookup carries no language.
func SetDefaultLanguage(lang string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if lang = strings.TrimSpace(lang); lang != "" {
		state.defaultLanguage = lang
	}
}

// Get returns the translation of key. Unsupported languages use the default one, English returns the key.
func Get(key, lang string) string {
	state.once.Do(load)

	// telegram sends IETF tags like "pt-br"
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if !IsSupported(lang) {
		state.mu.RLock()
		lang = state.defaultLanguage
		state.mu.RUnlock()
	}
	if strings.EqualFold(lang, "en") {
		return key
	}
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok {
		return res
	}
	log.WithField("object", "i18n").Tracef(`no translation for key "%s" in %s`, key, lang)
	return key
}
