package services

import (
	"testing"
	"time"

	"law_timeline_app_go/models"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService(t *testing.T) {
	db := setupTimelineTestDB(t)
	clk := testclock.NewClock(testNow)
	svc := NewNotificationService(db, clk)

	firmID := "firm-1"
	userID := "user-1"
	otherUser := "user-2"

	t.Run("create and get unread", func(t *testing.T) {
		require.NoError(t, svc.CreateNotification(&models.Notification{
			FirmID: firmID, UserID: &userID, Type: models.NotificationTypeDocumentReviewed, Title: "Reviewed", Message: "ok",
		}))
		require.NoError(t, svc.CreateNotification(&models.Notification{
			FirmID: firmID, Type: models.NotificationTypeSystem, Title: "Maintenance",
		}))
		require.NoError(t, svc.CreateNotification(&models.Notification{
			FirmID: firmID, UserID: &otherUser, Type: models.NotificationTypeSystem, Title: "Not yours",
		}))
		require.NoError(t, svc.CreateNotification(&models.Notification{
			FirmID: "firm-2", UserID: &userID, Type: models.NotificationTypeSystem, Title: "Other firm",
		}))

		notifications, err := svc.GetUnreadNotifications(firmID, userID, 0)
		require.NoError(t, err)
		assert.Len(t, notifications, 2)

		count, err := svc.GetNotificationCount(firmID, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("mark as read", func(t *testing.T) {
		var n models.Notification
		require.NoError(t, db.Where("user_id = ? AND firm_id = ?", userID, firmID).First(&n).Error)

		require.NoError(t, svc.MarkAsRead(n.ID, userID, firmID))
		require.NoError(t, db.First(&n, "id = ?", n.ID).Error)
		require.NotNil(t, n.ReadAt)
		assert.True(t, n.ReadAt.Equal(testNow))

		count, _ := svc.GetNotificationCount(firmID, userID)
		assert.Equal(t, int64(1), count)
	})

	t.Run("cannot read someone else's notification", func(t *testing.T) {
		var n models.Notification
		require.NoError(t, db.Where("user_id = ?", otherUser).First(&n).Error)
		err := svc.MarkAsRead(n.ID, userID, firmID)
		assert.True(t, errors.Is(err, errors.NotFound))
	})

	t.Run("limit", func(t *testing.T) {
		clk.Advance(time.Minute)
		notifications, err := svc.GetUnreadNotifications(firmID, otherUser, 1)
		require.NoError(t, err)
		assert.Len(t, notifications, 1)
	})
}
