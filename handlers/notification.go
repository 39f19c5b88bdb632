package handlers

import (
	"net/http"
	"strconv"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services"

	"github.com/labstack/echo/v4"
)

type notificationsResponse struct {
	Unread        int64                 `json:"unread"`
	Notifications []models.Notification `json:"notifications"`
}

func notificationService() *services.NotificationService {
	tl := timeline()
	return services.NewNotificationService(tl.DB, tl.Clock)
}

// GetNotificationsHandler lists unread notifications for the current user
func GetNotificationsHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	service := notificationService()
	notifications, err := service.GetUnreadNotifications(actor.FirmID, actor.UserID, limit)
	if err != nil {
		return httpError(err)
	}
	count, err := service.GetNotificationCount(actor.FirmID, actor.UserID)
	if err != nil {
		return httpError(err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return c.JSON(http.StatusOK, notificationsResponse{Unread: count, Notifications: notifications})
}

// MarkNotificationReadHandler marks one notification as read
func MarkNotificationReadHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := notificationService().MarkAsRead(c.Param("id"), actor.UserID, actor.FirmID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
