package provisioning

import (
	"context"
	"fmt"
	"testing"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/secrets"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory Store for exercising the engine without a
// database.
type fakeStore struct {
	identities  map[uuid.UUID]*emqx.BrokerIdentity
	rules       map[uuid.UUID]*emqx.ACLRule
	credentials map[uuid.UUID]*storage.DeviceCredential // keyed by device ID
	mqttEnabled map[uuid.UUID]bool

	failCredentialInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities:  make(map[uuid.UUID]*emqx.BrokerIdentity),
		rules:       make(map[uuid.UUID]*emqx.ACLRule),
		credentials: make(map[uuid.UUID]*storage.DeviceCredential),
		mqttEnabled: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) InsertBrokerIdentity(_ context.Context, ident emqx.BrokerIdentity) (*emqx.BrokerIdentity, error) {
	for _, existing := range f.identities {
		if existing.Username == ident.Username {
			return nil, fmt.Errorf("%w: %s", emqx.ErrDuplicateUsername, ident.Username)
		}
	}
	ident.ID = uuid.New()
	f.identities[ident.ID] = &ident
	return &ident, nil
}

func (f *fakeStore) GetBrokerIdentityByDevice(_ context.Context, deviceID uuid.UUID) (*emqx.BrokerIdentity, error) {
	for _, ident := range f.identities {
		if ident.DeviceID != nil && *ident.DeviceID == deviceID {
			return ident, nil
		}
	}
	return nil, emqx.ErrIdentityNotFound
}

func (f *fakeStore) UpdateBrokerIdentityPassword(_ context.Context, id uuid.UUID, passwordHash, salt string) error {
	ident, ok := f.identities[id]
	if !ok {
		return emqx.ErrIdentityNotFound
	}
	ident.PasswordHash = passwordHash
	ident.Salt = salt
	return nil
}

func (f *fakeStore) DeleteBrokerIdentity(_ context.Context, id uuid.UUID) error {
	if _, ok := f.identities[id]; !ok {
		return emqx.ErrIdentityNotFound
	}
	delete(f.identities, id)
	return nil
}

func (f *fakeStore) InsertACLRule(_ context.Context, rule emqx.ACLRule) (*emqx.ACLRule, error) {
	var owner *emqx.BrokerIdentity
	if rule.IdentityID != nil {
		owner = f.identities[*rule.IdentityID]
	}
	if err := rule.Validate(owner); err != nil {
		return nil, err
	}
	rule.ID = uuid.New()
	f.rules[rule.ID] = &rule
	return &rule, nil
}

func (f *fakeStore) DeleteACLRulesForIdentity(_ context.Context, identityID uuid.UUID) (int64, error) {
	var removed int64
	for id, rule := range f.rules {
		if rule.IdentityID != nil && *rule.IdentityID == identityID {
			delete(f.rules, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) InsertDeviceCredential(_ context.Context, c *storage.DeviceCredential) (*storage.DeviceCredential, error) {
	if f.failCredentialInsert {
		return nil, fmt.Errorf("induced credential failure")
	}
	stored := *c
	stored.ID = uuid.New()
	f.credentials[c.DeviceID] = &stored
	return &stored, nil
}

func (f *fakeStore) UpdateDeviceCredentialPassword(_ context.Context, deviceID uuid.UUID, passwordEnc string) error {
	cred, ok := f.credentials[deviceID]
	if !ok {
		return storage.ErrNotFound
	}
	cred.PasswordEnc = passwordEnc
	return nil
}

func (f *fakeStore) DeleteDeviceCredentialByDevice(_ context.Context, deviceID uuid.UUID) error {
	delete(f.credentials, deviceID)
	return nil
}

func (f *fakeStore) SetDeviceMQTT(_ context.Context, id uuid.UUID, enabled bool, _ *string) error {
	f.mqttEnabled[id] = enabled
	return nil
}

func (f *fakeStore) rulesForIdentity(identityID uuid.UUID) []*emqx.ACLRule {
	var res []*emqx.ACLRule
	for _, rule := range f.rules {
		if rule.IdentityID != nil && *rule.IdentityID == identityID {
			res = append(res, rule)
		}
	}
	return res
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	key, err := secrets.NewKey()
	require.NoError(t, err)
	codec, err := secrets.NewCodec(key)
	require.NoError(t, err)
	return NewEngine("iot", codec, zap.NewNop())
}

func testDevice() *storage.Device {
	return &storage.Device{
		ID:         uuid.New(),
		Name:       "Greenhouse sensor",
		ExternalID: "dev-42",
	}
}

func TestDeviceCreatedProvisionsEverything(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	dev := testDevice()

	require.NoError(t, engine.DeviceCreated(context.Background(), store, dev))

	ident, err := store.GetBrokerIdentityByDevice(context.Background(), dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "device_dev-42", ident.Username)
	assert.False(t, ident.IsSuperuser)

	rules := store.rulesForIdentity(ident.ID)
	require.Len(t, rules, 5)

	byPosition := make(map[int]*emqx.ACLRule, len(rules))
	for _, rule := range rules {
		assert.Equal(t, ident.Username, rule.Username)
		byPosition[rule.Position] = rule
	}

	assert.Equal(t, "iot/sensors/dev-42/#", byPosition[1].Topic)
	assert.Equal(t, emqx.ActionPublish, byPosition[1].Action)

	assert.Equal(t, "iot/devices/dev-42/status", byPosition[2].Topic)
	require.NotNil(t, byPosition[2].Retain)
	assert.Equal(t, 1, *byPosition[2].Retain)

	assert.Equal(t, "iot/commands/dev-42/#", byPosition[3].Topic)
	assert.Equal(t, emqx.ActionSubscribe, byPosition[3].Action)

	assert.Equal(t, "iot/config/dev-42/#", byPosition[4].Topic)
	assert.Equal(t, emqx.ActionSubscribe, byPosition[4].Action)

	// The catch-all deny carries the highest position.
	assert.Equal(t, emqx.PermissionDeny, byPosition[5].Permission)
	assert.Equal(t, emqx.ActionAll, byPosition[5].Action)
	assert.Equal(t, "#", byPosition[5].Topic)

	// The recoverable credential matches the broker-side hash.
	cred, ok := store.credentials[dev.ID]
	require.True(t, ok)
	assert.Equal(t, ident.Username, cred.Username)

	plaintext, err := engine.codec.Decrypt(cred.PasswordEnc)
	require.NoError(t, err)
	assert.True(t, ident.CheckPassword(plaintext))

	assert.True(t, store.mqttEnabled[dev.ID])
}

func TestDeviceCreatedAbortsOnDuplicateUsername(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	dev := testDevice()

	existing, err := emqx.NewBrokerIdentity("device_dev-42", "first", false, nil)
	require.NoError(t, err)
	first, err := store.InsertBrokerIdentity(context.Background(), existing)
	require.NoError(t, err)

	err = engine.DeviceCreated(context.Background(), store, dev)
	assert.ErrorIs(t, err, emqx.ErrDuplicateUsername)

	// The prior identity is untouched and no rules were written.
	assert.Len(t, store.identities, 1)
	assert.True(t, store.identities[first.ID].CheckPassword("first"))
	assert.Empty(t, store.rules)
	assert.Empty(t, store.credentials)
	assert.False(t, store.mqttEnabled[dev.ID])
}

func TestDeviceCreatedPartialFailure(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	store.failCredentialInsert = true
	dev := testDevice()

	err := engine.DeviceCreated(context.Background(), store, dev)
	assert.ErrorIs(t, err, ErrProvisioningPartial)
	assert.False(t, store.mqttEnabled[dev.ID])
}

func TestDeviceDeletedIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	dev := testDevice()

	require.NoError(t, engine.DeviceCreated(context.Background(), store, dev))
	require.NoError(t, engine.DeviceDeleted(context.Background(), store, dev))

	assert.Empty(t, store.identities)
	assert.Empty(t, store.rules)
	assert.Empty(t, store.credentials)

	// Second delete is a no-op.
	require.NoError(t, engine.DeviceDeleted(context.Background(), store, dev))
}

func TestRotatePassword(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	dev := testDevice()

	require.NoError(t, engine.DeviceCreated(context.Background(), store, dev))

	ident, err := store.GetBrokerIdentityByDevice(context.Background(), dev.ID)
	require.NoError(t, err)
	oldCred := store.credentials[dev.ID].PasswordEnc
	oldPlain, err := engine.codec.Decrypt(oldCred)
	require.NoError(t, err)

	newPlain, err := engine.RotatePassword(context.Background(), store, dev)
	require.NoError(t, err)
	assert.NotEqual(t, oldPlain, newPlain)

	// Broker-side hash and recoverable credential both moved to the new
	// plaintext.
	assert.True(t, ident.CheckPassword(newPlain))
	assert.False(t, ident.CheckPassword(oldPlain))

	stored, err := engine.codec.Decrypt(store.credentials[dev.ID].PasswordEnc)
	require.NoError(t, err)
	assert.Equal(t, newPlain, stored)
}

func TestRotatePasswordWithoutIdentity(t *testing.T) {
	engine := newTestEngine(t)
	store := newFakeStore()
	dev := testDevice()

	_, err := engine.RotatePassword(context.Background(), store, dev)
	assert.ErrorIs(t, err, emqx.ErrIdentityNotFound)
}

func TestDeviceUsername(t *testing.T) {
	assert.Equal(t, "device_dev-42", DeviceUsername("dev-42"))
}
