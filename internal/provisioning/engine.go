package provisioning

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/GuiSarIot/backend-iot-agro/internal/devices"
	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/secrets"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrProvisioningPartial marks a failure after the broker identity was
// created. The caller rolls the provisioning writes back and leaves the
// device MQTT-disabled; an operator retries manually.
var ErrProvisioningPartial = errors.New("provisioning failed after identity creation")

// Store is what the engine needs from persistence. *storage.PostgresClient
// implements it; tests use an in-memory fake.
type Store interface {
	InsertBrokerIdentity(ctx context.Context, ident emqx.BrokerIdentity) (*emqx.BrokerIdentity, error)
	GetBrokerIdentityByDevice(ctx context.Context, deviceID uuid.UUID) (*emqx.BrokerIdentity, error)
	UpdateBrokerIdentityPassword(ctx context.Context, id uuid.UUID, passwordHash, salt string) error
	DeleteBrokerIdentity(ctx context.Context, id uuid.UUID) error
	InsertACLRule(ctx context.Context, rule emqx.ACLRule) (*emqx.ACLRule, error)
	DeleteACLRulesForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error)
	InsertDeviceCredential(ctx context.Context, c *storage.DeviceCredential) (*storage.DeviceCredential, error)
	UpdateDeviceCredentialPassword(ctx context.Context, deviceID uuid.UUID, passwordEnc string) error
	DeleteDeviceCredentialByDevice(ctx context.Context, deviceID uuid.UUID) error
	SetDeviceMQTT(ctx context.Context, id uuid.UUID, enabled bool, clientID *string) error
}

// Engine provisions broker access for devices: one mqtt_user identity, the
// default ACL rule set, and the operator-facing credential record. It is
// invoked synchronously through the device manager's lifecycle hooks so that
// a freshly flashed device can connect the moment its creation call returns.
type Engine struct {
	namespace string
	codec     *secrets.Codec
	logger    *zap.Logger
}

func NewEngine(namespace string, codec *secrets.Codec, logger *zap.Logger) *Engine {
	if namespace == "" {
		namespace = "iot"
	}
	return &Engine{
		namespace: namespace,
		codec:     codec,
		logger:    logger,
	}
}

// Register attaches the engine to the device manager's lifecycle hooks.
func (e *Engine) Register(m *devices.Manager) {
	m.OnAfterCreate(func(ctx context.Context, store *storage.PostgresClient, dev *storage.Device) error {
		return e.DeviceCreated(ctx, store, dev)
	})
	m.OnBeforeDelete(func(ctx context.Context, store *storage.PostgresClient, dev *storage.Device) error {
		return e.DeviceDeleted(ctx, store, dev)
	})
}

// DeviceUsername derives the canonical broker username for a device.
func DeviceUsername(externalID string) string {
	return "device_" + externalID
}

// newDevicePassword returns a URL-safe random password with 24 bytes of entropy.
func newDevicePassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate device password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeviceCreated provisions broker access for a new device. On a username
// collision it aborts without touching the existing identity. Any error
// return means the caller must discard all writes made here.
func (e *Engine) DeviceCreated(ctx context.Context, store Store, dev *storage.Device) error {
	username := DeviceUsername(dev.ExternalID)

	password, err := newDevicePassword()
	if err != nil {
		return err
	}

	ident, err := emqx.NewBrokerIdentity(username, password, false, &dev.ID)
	if err != nil {
		return err
	}

	created, err := store.InsertBrokerIdentity(ctx, ident)
	if err != nil {
		if errors.Is(err, emqx.ErrDuplicateUsername) {
			e.logger.Warn("broker identity already exists, provisioning aborted",
				zap.String("username", username),
				zap.String("device", dev.ExternalID))
		}
		return err
	}

	// From here on a failure must not leave the identity without its
	// deny-all catch-all; the error return makes the caller roll back
	// everything written in this call.
	if err := e.createDefaultACLRules(ctx, store, created, dev.ExternalID); err != nil {
		return e.partialFailure(username, err)
	}

	encrypted, err := e.codec.Encrypt(password)
	if err != nil {
		return e.partialFailure(username, err)
	}

	_, err = store.InsertDeviceCredential(ctx, &storage.DeviceCredential{
		DeviceID:    dev.ID,
		ClientID:    username,
		Username:    username,
		PasswordEnc: encrypted,
		IsActive:    true,
	})
	if err != nil {
		return e.partialFailure(username, err)
	}

	if err := store.SetDeviceMQTT(ctx, dev.ID, true, &username); err != nil {
		return e.partialFailure(username, err)
	}

	e.logger.Info("broker identity provisioned",
		zap.String("username", username),
		zap.String("device", dev.ExternalID))

	return nil
}

// createDefaultACLRules writes the default rule set for a device identity.
// The deny-all catch-all is written last and carries the highest position;
// the broker's authorization query must order by position (or preserve
// insertion order) for it to stay last.
func (e *Engine) createDefaultACLRules(ctx context.Context, store Store, ident *emqx.BrokerIdentity, externalID string) error {
	rules := []emqx.ACLRule{
		{
			Permission: emqx.PermissionAllow,
			Action:     emqx.ActionPublish,
			Topic:      fmt.Sprintf("%s/sensors/%s/#", e.namespace, externalID),
			QoS:        emqx.IntPtr(1),
			Retain:     emqx.IntPtr(0),
		},
		{
			Permission: emqx.PermissionAllow,
			Action:     emqx.ActionPublish,
			Topic:      fmt.Sprintf("%s/devices/%s/status", e.namespace, externalID),
			QoS:        emqx.IntPtr(1),
			Retain:     emqx.IntPtr(1), // last status survives reconnects
		},
		{
			Permission: emqx.PermissionAllow,
			Action:     emqx.ActionSubscribe,
			Topic:      fmt.Sprintf("%s/commands/%s/#", e.namespace, externalID),
			QoS:        emqx.IntPtr(1),
		},
		{
			Permission: emqx.PermissionAllow,
			Action:     emqx.ActionSubscribe,
			Topic:      fmt.Sprintf("%s/config/%s/#", e.namespace, externalID),
			QoS:        emqx.IntPtr(1),
		},
		{
			Permission: emqx.PermissionDeny,
			Action:     emqx.ActionAll,
			Topic:      "#",
		},
	}

	for i := range rules {
		rules[i].Username = ident.Username
		rules[i].IdentityID = &ident.ID
		rules[i].Position = i + 1
		if _, err := store.InsertACLRule(ctx, rules[i]); err != nil {
			return fmt.Errorf("failed to create acl rule %d: %w", i+1, err)
		}
	}
	return nil
}

// DeviceDeleted removes the device's broker identity, its ACL rules and its
// credential record. A device with no identity is not an error; repeated
// calls are no-ops.
func (e *Engine) DeviceDeleted(ctx context.Context, store Store, dev *storage.Device) error {
	ident, err := store.GetBrokerIdentityByDevice(ctx, dev.ID)
	if err != nil {
		if errors.Is(err, emqx.ErrIdentityNotFound) {
			return nil
		}
		return err
	}

	if _, err := store.DeleteACLRulesForIdentity(ctx, ident.ID); err != nil {
		return err
	}
	if err := store.DeleteBrokerIdentity(ctx, ident.ID); err != nil && !errors.Is(err, emqx.ErrIdentityNotFound) {
		return err
	}
	if err := store.DeleteDeviceCredentialByDevice(ctx, dev.ID); err != nil {
		return err
	}

	e.logger.Info("broker identity removed",
		zap.String("username", ident.Username),
		zap.String("device", dev.ExternalID))

	return nil
}

// RotatePassword issues a fresh password for a device: new salt and hash in
// mqtt_user, matching encrypted plaintext in the credential record. Returns
// the new plaintext once, for the operator to flash onto the device.
func (e *Engine) RotatePassword(ctx context.Context, store Store, dev *storage.Device) (string, error) {
	ident, err := store.GetBrokerIdentityByDevice(ctx, dev.ID)
	if err != nil {
		return "", err
	}

	password, err := newDevicePassword()
	if err != nil {
		return "", err
	}

	if err := ident.SetPassword(password); err != nil {
		return "", err
	}
	if err := store.UpdateBrokerIdentityPassword(ctx, ident.ID, ident.PasswordHash, ident.Salt); err != nil {
		return "", err
	}

	encrypted, err := e.codec.Encrypt(password)
	if err != nil {
		return "", err
	}
	if err := store.UpdateDeviceCredentialPassword(ctx, dev.ID, encrypted); err != nil {
		return "", err
	}

	e.logger.Info("device password rotated",
		zap.String("username", ident.Username),
		zap.String("device", dev.ExternalID))

	return password, nil
}

func (e *Engine) partialFailure(username string, err error) error {
	e.logger.Error("provisioning failed after identity creation, rolling back",
		zap.String("username", username),
		zap.Error(err))
	return fmt.Errorf("%w (username %s): %v", ErrProvisioningPartial, username, err)
}
