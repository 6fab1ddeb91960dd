package notify

import (
	"context"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"go.uber.org/zap"
)

// Dispatcher fans an alert out to every channel the operator has configured.
// Delivery is best effort: failures are logged, never propagated, so a broken
// bot token cannot break the status-report path.
type Dispatcher struct {
	telegram Notifier
	email    Notifier
	logger   *zap.Logger
}

func NewDispatcher(telegram, email Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		telegram: telegram,
		email:    email,
		logger:   logger,
	}
}

// AlertOperator sends text to the operator's Telegram chat and email address,
// whichever are set.
func (d *Dispatcher) AlertOperator(ctx context.Context, operator *storage.User, text string) {
	if operator == nil {
		return
	}

	if d.telegram != nil && operator.TelegramChatID != nil && *operator.TelegramChatID != "" {
		if err := d.telegram.Send(ctx, *operator.TelegramChatID, text); err != nil {
			d.logger.Warn("Telegram alert failed",
				zap.String("operator", operator.Username),
				zap.Error(err))
		}
	}

	if d.email != nil && operator.Email != nil && *operator.Email != "" {
		if err := d.email.Send(ctx, *operator.Email, text); err != nil {
			d.logger.Warn("Email alert failed",
				zap.String("operator", operator.Username),
				zap.Error(err))
		}
	}
}
