package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/pkg/storage"
)

func newTestService(t *testing.T) (*Service, *storage.LocalStore) {
	t.Helper()
	db, err := database.OpenMemory(&Message{})
	require.NoError(t, err)
	files := storage.NewLocalStore(t.TempDir())
	return NewService(db, files, zap.NewNop()), files
}

func TestConversationIsOrdered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "PROP-1", "buyer@example.com", "Is the plot still available?")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "PROP-1", "seller@example.com", "Yes")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "PROP-2", "buyer@example.com", "Other plot")
	require.NoError(t, err)

	msgs, err := svc.List(ctx, "PROP-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "buyer@example.com", msgs[0].SenderEmail)
	assert.Equal(t, "Yes", msgs[1].Message)
	assert.Equal(t, TypeText, msgs[1].Type)
}

func TestSendAudioStoresFile(t *testing.T) {
	svc, files := newTestService(t)
	ctx := context.Background()

	m, err := svc.SendAudio(ctx, "PROP-1", "buyer@example.com", &storage.Upload{
		Filename: "note.webm",
		Content:  strings.NewReader("audio-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, TypeAudio, m.Type)
	assert.True(t, strings.HasPrefix(m.Message, audioDir+"/"))

	rc, err := files.Open(ctx, m.Message)
	require.NoError(t, err)
	rc.Close()
}

func TestSendValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "PROP-1", "buyer@example.com", "   ")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Send(ctx, "", "buyer@example.com", "hi")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.SendAudio(ctx, "PROP-1", "buyer@example.com", nil)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.List(ctx, "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}
