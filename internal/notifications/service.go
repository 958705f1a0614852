package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a notification does not belong to the user.
var ErrNotFound = errors.New("notification not found")

// Service stores notifications and fans them out over the configured channels.
type Service struct {
	db          *gorm.DB
	channels    []Channel
	prefs       PreferenceSource
	sendTimeout time.Duration
	logger      *zap.Logger
	wg          sync.WaitGroup
}

func NewService(db *gorm.DB, prefs PreferenceSource, logger *zap.Logger, channels ...Channel) *Service {
	return &Service{
		db:          db,
		channels:    channels,
		prefs:       prefs,
		sendTimeout: 30 * time.Second,
		logger:      logger,
	}
}

// Notify records one notification per recipient and delivers it. Channel
// sends run in the background; Wait blocks until they finish.
func (s *Service) Notify(ctx context.Context, ev Event) {
	title, message := describe(ev)
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	for _, recipient := range ev.Recipients() {
		n := &Notification{
			UserEmail: recipient,
			Type:      ev.Type,
			Title:     title,
			Message:   message,
			Data:      data,
		}
		if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
			s.logger.Error("Failed to store notification",
				zap.String("recipient", recipient),
				zap.Uint("transaction_id", ev.TransactionID),
				zap.Error(err))
			continue
		}

		for _, ch := range s.channels {
			s.wg.Add(1)
			go s.deliver(ch, recipient, n)
		}
	}
}

func (s *Service) deliver(ch Channel, recipient string, n *Notification) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if s.prefs != nil {
		enabled, err := s.prefs.ChannelEnabled(ctx, recipient, ch.Name())
		if err != nil {
			s.logger.Warn("Failed to load notification preferences",
				zap.String("recipient", recipient), zap.Error(err))
		} else if !enabled {
			return
		}
	}

	if err := ch.Send(ctx, recipient, n); err != nil {
		s.logger.Debug("Notification not delivered",
			zap.String("channel", ch.Name()),
			zap.String("recipient", recipient),
			zap.Error(err))
	}
}

// Wait blocks until background deliveries have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// List returns a user's notifications, newest first.
func (s *Service) List(ctx context.Context, email string, unreadOnly bool) ([]Notification, error) {
	q := s.db.WithContext(ctx).Where("user_email = ?", email)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []Notification
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id uint, email string) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_email = ?", id, email).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func describe(ev Event) (string, string) {
	switch ev.Type {
	case EventTransactionCreated:
		return "New purchase request",
			fmt.Sprintf("%s requested to buy property %s", ev.BuyerEmail, ev.PropertyID)
	default:
		title := fmt.Sprintf("Transaction %s", ev.To)
		msg := fmt.Sprintf("Transaction #%d for property %s moved from %s to %s",
			ev.TransactionID, ev.PropertyID, ev.From, ev.To)
		if ev.TxHash != "" {
			msg += fmt.Sprintf(" (tx %s)", ev.TxHash)
		}
		return title, msg
	}
}
