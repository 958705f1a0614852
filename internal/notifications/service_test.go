package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/database"
)

type recordingChannel struct {
	name string
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func newRecordingChannel(name string) *recordingChannel {
	return &recordingChannel{name: name, sent: make(map[string][]string)}
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, recipient string, n *Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[recipient] = append(c.sent[recipient], n.Title)
	return c.err
}

type staticPrefs map[string]bool

func (p staticPrefs) ChannelEnabled(_ context.Context, email, channel string) (bool, error) {
	enabled, ok := p[email+"/"+channel]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

func newTestService(t *testing.T, prefs PreferenceSource, channels ...Channel) *Service {
	t.Helper()
	db, err := database.OpenMemory(&Notification{})
	require.NoError(t, err)
	return NewService(db, prefs, zap.NewNop(), channels...)
}

func statusEvent() Event {
	return Event{
		Type:          EventStatusChanged,
		TransactionID: 7,
		PropertyID:    "PROP-1",
		From:          "Requested",
		To:            "Accepted",
		BuyerEmail:    "buyer@example.com",
		SellerEmail:   "seller@example.com",
		ActorEmail:    "seller@example.com",
		At:            time.Now(),
	}
}

func TestNotifySkipsActorAndStoresNotification(t *testing.T) {
	push := newRecordingChannel(ChannelPush)
	svc := newTestService(t, nil, push)
	ctx := context.Background()

	svc.Notify(ctx, statusEvent())
	svc.Wait()

	assert.Equal(t, []string{"Transaction Accepted"}, push.sent["buyer@example.com"])
	assert.Empty(t, push.sent["seller@example.com"])

	list, err := svc.List(ctx, "buyer@example.com", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "from Requested to Accepted")
	assert.False(t, list[0].Read)

	require.NoError(t, svc.MarkRead(ctx, list[0].ID, "buyer@example.com"))
	unread, err := svc.List(ctx, "buyer@example.com", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, svc.MarkRead(ctx, list[0].ID, "intruder@example.com"), ErrNotFound)
}

func TestNotifyHonoursPreferences(t *testing.T) {
	push := newRecordingChannel(ChannelPush)
	email := newRecordingChannel(ChannelEmail)
	prefs := staticPrefs{"buyer@example.com/email": false}
	svc := newTestService(t, prefs, push, email)

	svc.Notify(context.Background(), statusEvent())
	svc.Wait()

	assert.Len(t, push.sent["buyer@example.com"], 1)
	assert.Empty(t, email.sent["buyer@example.com"])
}

func TestChannelFailureDoesNotPropagate(t *testing.T) {
	push := newRecordingChannel(ChannelPush)
	push.err = errors.New("user not connected")
	svc := newTestService(t, nil, push)

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), statusEvent())
		svc.Wait()
	})
}

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(in)
	return &sesv2.SendEmailOutput{}, args.Error(0)
}

func TestEmailChannel(t *testing.T) {
	ses := new(mockSES)
	ses.On("SendEmail", mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return aws.ToString(in.FromEmailAddress) == "registry@example.com" &&
			in.Destination.ToAddresses[0] == "buyer@example.com" &&
			aws.ToString(in.Content.Simple.Subject.Data) == "Transaction Completed"
	})).Return(nil)

	ch := NewEmailChannelWithClient(ses, "registry@example.com")
	err := ch.Send(context.Background(), "buyer@example.com", &Notification{Title: "Transaction Completed", Message: "done"})

	require.NoError(t, err)
	ses.AssertExpectations(t)
}
