package services

import (
	"law_timeline_app_go/models"

	"github.com/juju/errors"
)

// Actor is who performs a timeline operation, always within one firm
type Actor struct {
	UserID   string
	FirmID   string
	Name     string
	Role     string
	Language string
}

// ActorFromUser builds an actor for a user that belongs to a firm
func ActorFromUser(u *models.User) (Actor, error) {
	if u == nil || !u.HasFirm() {
		return Actor{}, errors.Forbiddenf("user without firm")
	}
	if !u.IsActive {
		return Actor{}, errors.Forbiddenf("inactive user")
	}
	return Actor{
		UserID:   u.ID,
		FirmID:   *u.FirmID,
		Name:     u.Name,
		Role:     u.Role,
		Language: u.Language,
	}, nil
}

func (a Actor) IsStaff() bool {
	return models.IsStaffRole(a.Role)
}

func (a Actor) IsClient() bool {
	return a.Role == models.RoleClient
}

func (a Actor) requireStaff(action string) error {
	if !a.IsStaff() {
		return errors.Forbiddenf("%s requires a firm member", action)
	}
	return nil
}
