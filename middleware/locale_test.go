package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services/i18n"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocale(t *testing.T) {
	e := echo.New()

	run := func(target, acceptLanguage string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if acceptLanguage != "" {
			req.Header.Set("Accept-Language", acceptLanguage)
		}
		c := e.NewContext(req, httptest.NewRecorder())
		err := Locale()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
		require.NoError(t, err)
		return c
	}

	t.Run("query param", func(t *testing.T) {
		c := run("/?lang=es", "en-US")
		assert.Equal(t, "es", GetLocale(c))
		assert.Equal(t, "es", i18n.GetLocale(c.Request().Context()))
	})

	t.Run("unsupported query falls through to header", func(t *testing.T) {
		c := run("/?lang=fr", "es-CO,es;q=0.9")
		assert.Equal(t, "es", GetLocale(c))
	})

	t.Run("first supported header tag", func(t *testing.T) {
		c := run("/", "de-DE;q=1.0, en-GB;q=0.8, es;q=0.5")
		assert.Equal(t, "en", GetLocale(c))
	})

	t.Run("no hint leaves default", func(t *testing.T) {
		c := run("/", "")
		assert.Nil(t, c.Get("locale"))
		assert.Equal(t, "en", GetLocale(c))
	})
}

func TestLocaleOverridesUserPreference(t *testing.T) {
	db := setupTestDB(t)
	firm := models.Firm{Name: "Test Firm", Slug: "locale-firm"}
	require.NoError(t, db.Create(&firm).Error)
	user := createUser(t, db, &firm.ID, models.RoleLawyer, true) // prefers "es"

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	req.Header.Set(HeaderUserID, user.ID)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := Locale()(RequireActor(db)(func(c echo.Context) error { return nil }))
	require.NoError(t, handler(c))
	assert.Equal(t, "en", GetLocale(c))
}
