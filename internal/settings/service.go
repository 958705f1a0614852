package settings

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/notifications"
)

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the stored settings or the defaults.
func (s *Service) Get(ctx context.Context, email string) (*UserSettings, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errs.E(errs.KindValidation, "settings.Get", "email is required")
	}

	stored, err := s.repo.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return Defaults(email), nil
	}
	return stored, nil
}

// Save applies the provided fields on top of the current settings.
func (s *Service) Save(ctx context.Context, email string, req UpdateRequest) (*UserSettings, error) {
	current, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	if req.EmailNotifications != nil {
		current.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		current.PushNotifications = *req.PushNotifications
	}
	if req.TwoFactorAuth != nil {
		current.TwoFactorAuth = *req.TwoFactorAuth
	}

	if err := s.repo.Upsert(ctx, current); err != nil {
		return nil, err
	}

	s.logger.Debug("Settings updated", zap.String("user", email))
	return current, nil
}

// ChannelEnabled reports whether the user accepts notifications on channel.
func (s *Service) ChannelEnabled(ctx context.Context, email, channel string) (bool, error) {
	st, err := s.Get(ctx, email)
	if err != nil {
		return false, err
	}
	switch channel {
	case notifications.ChannelEmail:
		return st.EmailNotifications, nil
	case notifications.ChannelPush:
		return st.PushNotifications, nil
	}
	return true, nil
}

var _ notifications.PreferenceSource = (*Service)(nil)
