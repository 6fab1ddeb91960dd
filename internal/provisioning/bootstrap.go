package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedTopic struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Direction   string `yaml:"direction"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	Description string `yaml:"description"`
}

// SeedTopics loads the topic registry seed file and upserts every entry, so
// that config edits take effect on restart without duplicating rows. A
// missing file is not an error; the registry is then maintained through the
// API only.
func SeedTopics(ctx context.Context, store *storage.PostgresClient, path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no topic seed file, skipping", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to read topic seed file: %w", err)
	}

	var entries []seedTopic
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse topic seed file: %w", err)
	}

	for _, entry := range entries {
		if entry.Direction == "" {
			entry.Direction = storage.TopicBoth
		}
		_, err := store.UpsertTopic(ctx, &storage.Topic{
			Name:        entry.Name,
			Pattern:     entry.Pattern,
			Direction:   entry.Direction,
			QoS:         entry.QoS,
			Retain:      entry.Retain,
			Description: entry.Description,
		})
		if err != nil {
			return fmt.Errorf("failed to seed topic %q: %w", entry.Name, err)
		}
	}

	logger.Info("topic registry seeded", zap.Int("topics", len(entries)))
	return nil
}

// EnsureAdminIdentity creates the superuser broker identity used by backend
// tooling (subscribes and publishes everywhere, bypassing the ACL table). It
// is created once; an existing identity is left untouched so a rotated
// password survives restarts.
func EnsureAdminIdentity(ctx context.Context, store *storage.PostgresClient, username, password string, logger *zap.Logger) error {
	if username == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("admin broker identity %q configured without a password", username)
	}

	_, err := store.GetBrokerIdentityByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, emqx.ErrIdentityNotFound) {
		return err
	}

	ident, err := emqx.NewBrokerIdentity(username, password, true, nil)
	if err != nil {
		return err
	}
	if _, err := store.InsertBrokerIdentity(ctx, ident); err != nil {
		// Concurrent startup of a second instance can win the race.
		if errors.Is(err, emqx.ErrDuplicateUsername) {
			return nil
		}
		return err
	}

	logger.Info("admin broker identity created", zap.String("username", username))
	return nil
}
