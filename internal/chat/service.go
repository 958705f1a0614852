package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/pkg/storage"
)

const audioDir = "audio_messages"

type Service struct {
	db     *gorm.DB
	files  storage.FileStore
	logger *zap.Logger
}

func NewService(db *gorm.DB, files storage.FileStore, logger *zap.Logger) *Service {
	return &Service{db: db, files: files, logger: logger}
}

// Send stores a text message.
func (s *Service) Send(ctx context.Context, propertyID, senderEmail, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.E(errs.KindValidation, "chat.Send", "message is required")
	}
	return s.create(ctx, "chat.Send", propertyID, senderEmail, text, TypeText)
}

// SendAudio saves the recording through the file store and stores a message
// pointing at it.
func (s *Service) SendAudio(ctx context.Context, propertyID, senderEmail string, audio *storage.Upload) (*Message, error) {
	const op = "chat.SendAudio"
	if audio == nil || audio.Content == nil {
		return nil, errs.E(errs.KindValidation, op, "audio file is required")
	}
	if err := validateParticipants(op, propertyID, senderEmail); err != nil {
		return nil, err
	}

	ref, err := s.files.Save(ctx, audioDir, audio.Filename, audio.Content)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalService, op, err, "failed to store audio message")
	}

	m, err := s.create(ctx, op, propertyID, senderEmail, ref, TypeAudio)
	if err != nil {
		if derr := s.files.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			s.logger.Warn("Failed to remove orphaned audio", zap.String("ref", ref), zap.Error(derr))
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) create(ctx context.Context, op, propertyID, senderEmail, body string, typ MessageType) (*Message, error) {
	if err := validateParticipants(op, propertyID, senderEmail); err != nil {
		return nil, err
	}

	m := &Message{
		PropertyID:  strings.TrimSpace(propertyID),
		SenderEmail: senderEmail,
		Message:     body,
		Type:        typ,
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.logger.Debug("Message sent",
		zap.String("property_id", m.PropertyID),
		zap.String("sender", senderEmail),
		zap.String("type", string(typ)))
	return m, nil
}

// List returns a property's messages oldest first.
func (s *Service) List(ctx context.Context, propertyID string) ([]Message, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, errs.E(errs.KindValidation, "chat.List", "property_id is required")
	}

	var out []Message
	err := s.db.WithContext(ctx).
		Where("property_id = ?", strings.TrimSpace(propertyID)).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

func validateParticipants(op, propertyID, senderEmail string) error {
	if strings.TrimSpace(propertyID) == "" {
		return errs.E(errs.KindValidation, op, "property_id is required")
	}
	if senderEmail == "" {
		return errs.E(errs.KindValidation, op, "sender is required")
	}
	return nil
}
