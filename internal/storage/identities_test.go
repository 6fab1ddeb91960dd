package storage

import (
	"fmt"
	"testing"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsValid(t *testing.T) {
	ident, err := emqx.NewBrokerIdentity("device_greenhouse-01", "correct-horse", false, nil)
	require.NoError(t, err)

	ok, err := credentialsValid(&ident, nil, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = credentialsValid(&ident, nil, "wrong-horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialsValidUnknownUserIndistinguishable(t *testing.T) {
	ident, err := emqx.NewBrokerIdentity("device_greenhouse-01", "correct-horse", false, nil)
	require.NoError(t, err)

	// A missing identity and a bad password must produce the same answer.
	wrongOK, wrongErr := credentialsValid(&ident, nil, "wrong-horse")
	unknownOK, unknownErr := credentialsValid(nil, emqx.ErrIdentityNotFound, "correct-horse")

	assert.Equal(t, wrongOK, unknownOK)
	assert.Equal(t, wrongErr, unknownErr)
	assert.False(t, unknownOK)
	assert.NoError(t, unknownErr)
}

func TestCredentialsValidPropagatesOtherErrors(t *testing.T) {
	dbErr := fmt.Errorf("connection reset")
	ok, err := credentialsValid(nil, dbErr, "anything")
	assert.False(t, ok)
	assert.ErrorIs(t, err, dbErr)
}
