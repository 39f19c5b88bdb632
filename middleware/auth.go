package middleware

import (
	"net/http"
	"strings"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services"
	"law_timeline_app_go/services/i18n"

	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("lawtimeline.middleware")

const (
	// HeaderUserID carries the authenticated user id set by the upstream gateway
	HeaderUserID = "X-User-ID"
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeyFirm is the context key for the user's firm
	ContextKeyFirm = "firm"
	// ContextKeyActor is the context key for the services.Actor of the request
	ContextKeyActor = "actor"
)

// RequireActor resolves the calling user and firm for every timeline route.
// Authentication happens upstream; the gateway forwards the user id in
// X-User-ID and this middleware only checks that the user may act.
func RequireActor(database *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			var user models.User
			if err := database.Preload("Firm").Where("id = ?", userID).First(&user).Error; err != nil {
				if err != gorm.ErrRecordNotFound {
					logger.Errorf("loading user %s: %v", userID, err)
					return echo.NewHTTPError(http.StatusInternalServerError)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}
			if !user.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			actor, err := services.ActorFromUser(&user)
			if err != nil || user.Firm == nil {
				return echo.NewHTTPError(http.StatusForbidden, "User has no firm")
			}

			c.Set(ContextKeyUser, &user)
			c.Set(ContextKeyFirm, user.Firm)
			c.Set(ContextKeyActor, actor)

			// An explicit lang hint wins over the stored preference
			if _, ok := c.Get(contextKeyLocale).(string); !ok && user.Language != "" {
				setLocale(c, user.Language)
			}

			return next(c)
		}
	}
}

// RequireRole is middleware that requires specific roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetCurrentFirm retrieves the current firm from context
func GetCurrentFirm(c echo.Context) *models.Firm {
	firm, ok := c.Get(ContextKeyFirm).(*models.Firm)
	if !ok {
		return nil
	}
	return firm
}

// GetActor returns the actor resolved by RequireActor
func GetActor(c echo.Context) (services.Actor, bool) {
	actor, ok := c.Get(ContextKeyActor).(services.Actor)
	return actor, ok
}

func setLocale(c echo.Context, lang string) {
	c.Set(contextKeyLocale, lang)
	ctx := i18n.WithLocale(c.Request().Context(), lang)
	c.SetRequest(c.Request().WithContext(ctx))
}
