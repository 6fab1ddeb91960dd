package emqx

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BrokerIdentity is one row of mqtt_user, the table the external broker
// queries for authentication:
//
//	SELECT password_hash, salt, is_superuser FROM mqtt_user WHERE username = $1
//
// Column names are a compatibility surface; renaming them breaks the broker's
// configured query.
type BrokerIdentity struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	Salt         string     `json:"-"`
	IsSuperuser  bool       `json:"is_superuser"`
	DeviceID     *uuid.UUID `json:"device_id,omitempty"` // nil for non-device accounts
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewBrokerIdentity builds an identity with a freshly salted hash of the
// given plaintext. The plaintext itself is never stored.
func NewBrokerIdentity(username, password string, superuser bool, deviceID *uuid.UUID) (BrokerIdentity, error) {
	ident := BrokerIdentity{
		Username:    username,
		IsSuperuser: superuser,
		DeviceID:    deviceID,
	}
	if err := ident.SetPassword(password); err != nil {
		return BrokerIdentity{}, err
	}
	return ident, nil
}

// SetPassword regenerates the salt and derives a new hash. The salt of an
// existing record only changes through this call; unrelated updates must
// carry hash and salt through unchanged or previously issued device
// credentials stop verifying.
func (b *BrokerIdentity) SetPassword(password string) error {
	salt, err := NewSalt()
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	b.Salt = salt
	b.PasswordHash = HashPassword(password, salt)
	return nil
}

// CheckPassword reports whether the plaintext matches this identity.
func (b *BrokerIdentity) CheckPassword(password string) bool {
	return VerifyPassword(password, b.Salt, b.PasswordHash)
}
