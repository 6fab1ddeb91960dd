package emqx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() ACLRule {
	return ACLRule{
		Username:   "device_dev-1",
		Permission: PermissionAllow,
		Action:     ActionPublish,
		Topic:      "iot/sensors/dev-1/#",
		QoS:        IntPtr(1),
		Retain:     IntPtr(0),
	}
}

func TestACLRuleValidate(t *testing.T) {
	rule := validRule()
	assert.NoError(t, rule.Validate(nil))
}

func TestACLRuleValidateRejectsBadFields(t *testing.T) {
	rule := validRule()
	rule.Permission = "maybe"
	assert.Error(t, rule.Validate(nil))

	rule = validRule()
	rule.Action = "listen"
	assert.Error(t, rule.Validate(nil))

	rule = validRule()
	rule.Topic = "iot/#/sensors"
	assert.ErrorIs(t, rule.Validate(nil), ErrInvalidTopicPattern)

	rule = validRule()
	rule.QoS = IntPtr(3)
	assert.Error(t, rule.Validate(nil))

	rule = validRule()
	rule.Retain = IntPtr(2)
	assert.Error(t, rule.Validate(nil))
}

func TestACLRuleValidateUnconstrainedQoSRetain(t *testing.T) {
	rule := validRule()
	rule.QoS = nil
	rule.Retain = nil
	assert.NoError(t, rule.Validate(nil))
}

func TestACLRuleValidateOwnerMismatch(t *testing.T) {
	owner, err := NewBrokerIdentity("device_dev-1", "pw", false, nil)
	require.NoError(t, err)

	rule := validRule()
	assert.NoError(t, rule.Validate(&owner))

	rule.Username = "device_dev-2"
	assert.ErrorIs(t, rule.Validate(&owner), ErrInconsistentOwner)
}
