package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

//go:embed *.json
var fs embed.FS

var logger = loggo.GetLogger("lawtimeline.i18n")

// translations stores flattened keys: "en" -> "reminder.subject" -> "Reminder: ..."
var (
	translations = make(map[string]map[string]string)
	mutex        sync.RWMutex
	loadOnce     sync.Once
	loadErr      error
	defaultLang  = "en"
)

// Load reads the embedded locale files. It is safe to call more than once;
// only the first call parses.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load()
	})
	return loadErr
}

func load() error {
	mutex.Lock()
	defer mutex.Unlock()

	entries, err := fs.ReadDir(".")
	if err != nil {
		return errors.Annotate(err, "reading embedded locales")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")
		content, err := fs.ReadFile(entry.Name())
		if err != nil {
			return errors.Annotatef(err, "reading locale %s", entry.Name())
		}

		var result map[string]interface{}
		if err := json.Unmarshal(content, &result); err != nil {
			return errors.Annotatef(err, "parsing locale %s", entry.Name())
		}

		flat := make(map[string]string)
		flatten("", result, flat)
		translations[lang] = flat
		logger.Debugf("loaded locale %s (%d keys)", lang, len(flat))
	}

	return nil
}

// flatten recursively flattens a nested map into dot-notation keys.
func flatten(prefix string, nested map[string]interface{}, result map[string]string) {
	for k, v := range nested {
		newKey := k
		if prefix != "" {
			newKey = prefix + "." + k
		}

		switch child := v.(type) {
		case map[string]interface{}:
			flatten(newKey, child, result)
		case string:
			result[newKey] = child
		default:
			result[newKey] = fmt.Sprintf("%v", child)
		}
	}
}

// T translates key using the locale stored on ctx.
func T(ctx context.Context, key string, args ...map[string]interface{}) string {
	return Translate(GetLocale(ctx), key, args...)
}

// Translate retrieves a translation for a specific language code, falling
// back to the default language and then to the key itself.
// {name} placeholders are replaced from args.
func Translate(lang, key string, args ...map[string]interface{}) string {
	if err := Load(); err != nil {
		logger.Errorf("locales unavailable: %v", err)
	}

	mutex.RLock()
	defer mutex.RUnlock()

	if trans, ok := translations[normalizeLang(lang)]; ok {
		if val, ok := trans[key]; ok {
			return format(val, args...)
		}
	}
	if trans, ok := translations[defaultLang]; ok {
		if val, ok := trans[key]; ok {
			return format(val, args...)
		}
	}
	return key
}

// normalizeLang maps "es-CO" or "ES" to "es"
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// format replaces {var} placeholders with values from args if present.
func format(text string, args ...map[string]interface{}) string {
	if len(args) == 0 {
		return text
	}
	for k, v := range args[0] {
		text = strings.ReplaceAll(text, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return text
}

type contextKey string

const LocaleContextKey contextKey = "locale"

// WithLocale stores lang on ctx for T
func WithLocale(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, LocaleContextKey, lang)
}

// GetLocale extracts the locale from the context, defaulting to "en".
func GetLocale(ctx context.Context) string {
	if val, ok := ctx.Value(LocaleContextKey).(string); ok && val != "" {
		return val
	}
	return defaultLang
}
