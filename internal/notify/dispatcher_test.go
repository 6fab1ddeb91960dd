package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	recipients []string
	fail       bool
}

func (r *recordingNotifier) Send(_ context.Context, recipient, _ string) error {
	if r.fail {
		return fmt.Errorf("induced failure")
	}
	r.recipients = append(r.recipients, recipient)
	return nil
}

func strPtr(s string) *string { return &s }

func TestDispatcherUsesConfiguredChannels(t *testing.T) {
	telegram := &recordingNotifier{}
	email := &recordingNotifier{}
	d := NewDispatcher(telegram, email, zap.NewNop())

	d.AlertOperator(context.Background(), &storage.User{
		Username:       "alice",
		TelegramChatID: strPtr("111"),
		Email:          strPtr("alice@example.com"),
	}, "alert")

	assert.Equal(t, []string{"111"}, telegram.recipients)
	assert.Equal(t, []string{"alice@example.com"}, email.recipients)
}

func TestDispatcherSkipsUnsetChannels(t *testing.T) {
	telegram := &recordingNotifier{}
	email := &recordingNotifier{}
	d := NewDispatcher(telegram, email, zap.NewNop())

	d.AlertOperator(context.Background(), &storage.User{
		Username: "bob",
		Email:    strPtr("bob@example.com"),
	}, "alert")

	assert.Empty(t, telegram.recipients)
	assert.Equal(t, []string{"bob@example.com"}, email.recipients)
}

func TestDispatcherSurvivesChannelFailure(t *testing.T) {
	telegram := &recordingNotifier{fail: true}
	email := &recordingNotifier{}
	d := NewDispatcher(telegram, email, zap.NewNop())

	// A failing channel must not prevent the other from delivering.
	d.AlertOperator(context.Background(), &storage.User{
		Username:       "carol",
		TelegramChatID: strPtr("222"),
		Email:          strPtr("carol@example.com"),
	}, "alert")

	assert.Equal(t, []string{"carol@example.com"}, email.recipients)
}

func TestDispatcherNilOperator(t *testing.T) {
	d := NewDispatcher(&recordingNotifier{}, &recordingNotifier{}, zap.NewNop())
	assert.NotPanics(t, func() {
		d.AlertOperator(context.Background(), nil, "alert")
	})
}
