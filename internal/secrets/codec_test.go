package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key, err := NewKey()
	require.NoError(t, err)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	encrypted, err := codec.Encrypt("broker-password-123")
	require.NoError(t, err)
	assert.NotEqual(t, "broker-password-123", encrypted)

	plaintext, err := codec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "broker-password-123", plaintext)
}

func TestCodecNonDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt("same input")
	require.NoError(t, err)
	b, err := codec.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestCodecRejectsTamperedValue(t *testing.T) {
	codec := newTestCodec(t)

	encrypted, err := codec.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = codec.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestCodecRejectsWrongKey(t *testing.T) {
	first := newTestCodec(t)
	second := newTestCodec(t)

	encrypted, err := first.Encrypt("secret")
	require.NoError(t, err)

	_, err = second.Decrypt(encrypted)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestCodecRejectsMalformedInput(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "not base64!!!", "c2hvcnQ="} {
		_, err := codec.Decrypt(input)
		assert.ErrorIs(t, err, ErrDecryption, input)
	}
}

func TestNewCodecRejectsBadKeys(t *testing.T) {
	_, err := NewCodec("")
	assert.Error(t, err)

	_, err = NewCodec("not base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewCodec(short)
	assert.Error(t, err)
}
