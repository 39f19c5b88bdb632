package services

import (
	"law_timeline_app_go/models"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// NotificationService manages in-app notifications for timeline events
type NotificationService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewNotificationService(db *gorm.DB, clk clock.Clock) *NotificationService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &NotificationService{DB: db, Clock: clk}
}

// GetUnreadNotifications lists the newest unread notifications addressed to the user or the whole firm
func (s *NotificationService) GetUnreadNotifications(firmID, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var notifications []models.Notification
	err := s.DB.Where("firm_id = ? AND (user_id IS NULL OR user_id = ?) AND read_at IS NULL", firmID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, errors.Trace(err)
}

func (s *NotificationService) MarkAsRead(notificationID, userID, firmID string) error {
	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND firm_id = ? AND (user_id IS NULL OR user_id = ?)", notificationID, firmID, userID).
		Update("read_at", s.Clock.Now().UTC())
	if res.Error != nil {
		return errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("notification %s", notificationID)
	}
	return nil
}

func (s *NotificationService) GetNotificationCount(firmID, userID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Notification{}).
		Where("firm_id = ? AND (user_id IS NULL OR user_id = ?) AND read_at IS NULL", firmID, userID).
		Count(&count).Error
	return count, errors.Trace(err)
}

func (s *NotificationService) CreateNotification(notification *models.Notification) error {
	return errors.Trace(s.DB.Create(notification).Error)
}
