package devices

import (
	"context"
	"fmt"
	"sync"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HookFunc is a device lifecycle hook. It runs inside the same transaction as
// the device write, on a transaction-scoped storage client.
type HookFunc func(ctx context.Context, store *storage.PostgresClient, dev *storage.Device) error

// Manager owns device CRUD and the lifecycle hook registry. Hooks replace
// hidden framework signal wiring: interested subsystems register explicitly
// and still get the runs-in-the-same-transaction guarantee.
type Manager struct {
	db        *storage.PostgresClient
	validator *MetadataValidator
	logger    *zap.Logger

	mu           sync.RWMutex
	afterCreate  []HookFunc
	beforeDelete []HookFunc
}

func NewManager(db *storage.PostgresClient, logger *zap.Logger) (*Manager, error) {
	validator, err := NewMetadataValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create device manager: %w", err)
	}
	return &Manager{
		db:        db,
		validator: validator,
		logger:    logger,
	}, nil
}

// OnAfterCreate registers a hook invoked after a device row is inserted,
// before the creating transaction commits.
func (m *Manager) OnAfterCreate(h HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterCreate = append(m.afterCreate, h)
}

// OnBeforeDelete registers a hook invoked before a device row is deleted,
// inside the deleting transaction.
func (m *Manager) OnBeforeDelete(h HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeDelete = append(m.beforeDelete, h)
}

// Create inserts the device and runs the after-create hooks in one atomic
// transaction. Each hook runs in its own savepoint: a failing hook rolls its
// own writes back entirely (no partial identity/ACL state is ever visible),
// is logged, and does not undo the device creation itself.
func (m *Manager) Create(ctx context.Context, dev *storage.Device) (*storage.Device, error) {
	if err := m.validator.Validate(dev.Metadata); err != nil {
		return nil, err
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txClient := m.db.WithTx(tx)
	created, err := txClient.InsertDevice(ctx, dev)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	hooks := m.afterCreate
	m.mu.RUnlock()

	for _, hook := range hooks {
		sp, err := tx.Begin(ctx) // savepoint
		if err != nil {
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}
		if hookErr := hook(ctx, m.db.WithTx(sp), created); hookErr != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back hook savepoint: %w", rbErr)
			}
			m.logger.Error("device after-create hook failed",
				zap.String("device", created.ExternalID),
				zap.Error(hookErr))
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit hook savepoint: %w", err)
		}
	}

	// Re-read: hooks may have updated MQTT fields.
	created, err = txClient.GetDevice(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.logger.Info("Device created",
		zap.String("device", created.ExternalID),
		zap.Bool("mqtt_enabled", created.MQTTEnabled))

	return created, nil
}

// Delete runs the before-delete hooks and removes the device in one
// transaction. A failing hook aborts the deletion; the device stays.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txClient := m.db.WithTx(tx)
	dev, err := txClient.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	m.mu.RLock()
	hooks := m.beforeDelete
	m.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, txClient, dev); err != nil {
			return fmt.Errorf("before-delete hook failed for %s: %w", dev.ExternalID, err)
		}
	}

	if err := txClient.DeleteDevice(ctx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.logger.Info("Device deleted", zap.String("device", dev.ExternalID))
	return nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*storage.Device, error) {
	return m.db.GetDevice(ctx, id)
}

func (m *Manager) GetByExternalID(ctx context.Context, externalID string) (*storage.Device, error) {
	return m.db.GetDeviceByExternalID(ctx, externalID)
}

func (m *Manager) List(ctx context.Context) ([]*storage.Device, error) {
	return m.db.ListDevices(ctx)
}

func (m *Manager) Update(ctx context.Context, dev *storage.Device) (*storage.Device, error) {
	if err := m.validator.Validate(dev.Metadata); err != nil {
		return nil, err
	}
	return m.db.UpdateDevice(ctx, dev)
}
