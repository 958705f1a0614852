package settings

import "time"

// UserSettings holds the per-user notification and security switches.
type UserSettings struct {
	ID                 uint      `json:"-" gorm:"primaryKey"`
	UserEmail          string    `json:"user_email" gorm:"not null;uniqueIndex"`
	EmailNotifications bool      `json:"email_notifications"`
	PushNotifications  bool      `json:"push_notifications"`
	TwoFactorAuth      bool      `json:"two_factor_auth"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

// Defaults returns the settings a user has before saving any.
func Defaults(email string) *UserSettings {
	return &UserSettings{
		UserEmail:          email,
		EmailNotifications: true,
		PushNotifications:  true,
		TwoFactorAuth:      false,
	}
}

// UpdateRequest is a partial update; nil fields keep their value.
type UpdateRequest struct {
	EmailNotifications *bool `json:"email_notifications"`
	PushNotifications  *bool `json:"push_notifications"`
	TwoFactorAuth      *bool `json:"two_factor_auth"`
}
