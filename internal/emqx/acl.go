package emqx

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Permission values accepted by the broker.
const (
	PermissionAllow = "allow"
	PermissionDeny  = "deny"
)

// Action values accepted by the broker.
const (
	ActionPublish   = "publish"
	ActionSubscribe = "subscribe"
	ActionAll       = "all"
)

// ACLRule is one row of mqtt_acl, the table the external broker queries for
// authorization:
//
//	SELECT permission, action, topic, qos, retain FROM mqtt_acl
//	WHERE username = $1 ORDER BY position
//
// Position is an explicit sequence column so that rule precedence (in
// particular the trailing deny-all) does not depend on insertion order.
type ACLRule struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Permission string     `json:"permission"`
	Action     string     `json:"action"`
	Topic      string     `json:"topic"`
	QoS        *int       `json:"qos,omitempty"`    // nil = unconstrained
	Retain     *int       `json:"retain,omitempty"` // nil = unconstrained
	Position   int        `json:"position"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Validate checks the rule before it may be persisted. owner is the identity
// referenced by IdentityID, or nil when the rule is unowned. Violations never
// reach the broker-facing table.
func (r *ACLRule) Validate(owner *BrokerIdentity) error {
	switch r.Permission {
	case PermissionAllow, PermissionDeny:
	default:
		return fmt.Errorf("invalid permission %q", r.Permission)
	}

	switch r.Action {
	case ActionPublish, ActionSubscribe, ActionAll:
	default:
		return fmt.Errorf("invalid action %q", r.Action)
	}

	if err := ValidateTopicFilter(r.Topic); err != nil {
		return err
	}

	if r.QoS != nil && (*r.QoS < 0 || *r.QoS > 2) {
		return fmt.Errorf("invalid qos %d", *r.QoS)
	}
	if r.Retain != nil && (*r.Retain < 0 || *r.Retain > 1) {
		return fmt.Errorf("invalid retain %d", *r.Retain)
	}

	if owner != nil && owner.Username != r.Username {
		return fmt.Errorf("%w: rule %q, identity %q", ErrInconsistentOwner, r.Username, owner.Username)
	}

	return nil
}

// IntPtr is a small helper for the optional QoS/retain fields.
func IntPtr(v int) *int {
	return &v
}
