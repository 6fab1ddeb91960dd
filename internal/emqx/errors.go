package emqx

import "errors"

var (
	// ErrDuplicateUsername is returned when a broker identity with the same
	// username already exists. Provisioning aborts on this, no retry.
	ErrDuplicateUsername = errors.New("broker username already exists")

	// ErrInvalidTopicPattern is returned for malformed MQTT wildcard usage.
	ErrInvalidTopicPattern = errors.New("invalid topic pattern")

	// ErrInconsistentOwner is returned when an ACL rule names an owning
	// identity whose username differs from the rule's username field.
	ErrInconsistentOwner = errors.New("acl rule username does not match owning identity")

	// ErrIdentityNotFound is returned when no broker identity exists for a
	// given username or device.
	ErrIdentityNotFound = errors.New("broker identity not found")
)
