package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const contextKeyLocale = "locale"

var supportedLocales = map[string]bool{"en": true, "es": true}

// Locale picks the response language from explicit request hints.
// Priority:
// 1. Query param "lang"
// 2. Accept-Language header
// When neither names a supported language the user's stored preference
// (applied by RequireActor) or the default is used.
func Locale() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := matchLocale(c.QueryParam("lang"))
			if lang == "" {
				lang = fromAcceptLanguage(c.Request().Header.Get("Accept-Language"))
			}
			if lang != "" {
				setLocale(c, lang)
			}
			return next(c)
		}
	}
}

// GetLocale returns the current locale from context
func GetLocale(c echo.Context) string {
	if lang, ok := c.Get(contextKeyLocale).(string); ok && lang != "" {
		return lang
	}
	return "en"
}

func matchLocale(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if supportedLocales[lang] {
		return lang
	}
	return ""
}

// fromAcceptLanguage returns the first supported tag, ignoring q weights
func fromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if lang := matchLocale(tag); lang != "" {
			return lang
		}
	}
	return ""
}
