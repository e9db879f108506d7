package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/model"
	"wildsats-api/pkg/errutil"
)

// Vector from NIP-19.
const (
	vectorHex  = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	vectorNpub = "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"
)

func TestEncodePublicKey_KnownVector(t *testing.T) {
	npub, err := EncodePublicKey(vectorHex)
	require.NoError(t, err)
	assert.Equal(t, vectorNpub, npub)

	upper, err := EncodePublicKey(strings.ToUpper(vectorHex))
	require.NoError(t, err)
	assert.Equal(t, vectorNpub, upper, "encoding is case-insensitive on input")
}

func TestDecodePublicKey_KnownVector(t *testing.T) {
	key, err := DecodePublicKey(vectorNpub)
	require.NoError(t, err)
	assert.Equal(t, vectorHex, key)
}

func TestCodec_RoundTrip(t *testing.T) {
	seen := map[string]string{}
	for i := 0; i < 25; i++ {
		signer, err := GenerateKeySigner()
		require.NoError(t, err)
		pub, _ := signer.GetPublicKey(testContext(t))

		npub, err := EncodePublicKey(pub)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(npub, "npub1"))

		again, err := EncodePublicKey(pub)
		require.NoError(t, err)
		assert.Equal(t, npub, again, "encoding is deterministic")

		decoded, err := DecodePublicKey(npub)
		require.NoError(t, err)
		assert.Equal(t, pub, decoded)

		if other, dup := seen[npub]; dup {
			assert.Equal(t, other, pub, "distinct keys must not share an encoding")
		}
		seen[npub] = pub
	}
}

func TestDecodePublicKey_Malformed(t *testing.T) {
	signer, err := GenerateKeySigner()
	require.NoError(t, err)
	nsec, err := signer.SecretNsec()
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"truncated":      vectorNpub[:len(vectorNpub)-6],
		"bad checksum":   vectorNpub[:len(vectorNpub)-1] + "q",
		"wrong prefix":   nsec,
		"plain text":     "abc123",
		"hex not bech32": vectorHex,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePublicKey(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrMalformedIdentity)
			errutil.AssertErrorCode(t, err, "MALFORMED_IDENTITY")
		})
	}
}

func TestEncodePublicKey_Malformed(t *testing.T) {
	for _, input := range []string{"", "abc123", vectorHex[:63], vectorHex + "00", strings.Repeat("zz", 32)} {
		_, err := EncodePublicKey(input)
		assert.ErrorIs(t, err, model.ErrMalformedIdentity, "input %q", input)
	}
}

func TestNormalizePublicKey(t *testing.T) {
	fromNpub, err := NormalizePublicKey(vectorNpub)
	require.NoError(t, err)
	assert.Equal(t, vectorHex, fromNpub)

	fromHex, err := NormalizePublicKey("  " + strings.ToUpper(vectorHex) + " ")
	require.NoError(t, err)
	assert.Equal(t, vectorHex, fromHex)

	_, err = NormalizePublicKey("abc123")
	assert.ErrorIs(t, err, model.ErrMalformedIdentity)

	assert.True(t, IsCanonical(vectorNpub))
	assert.False(t, IsCanonical(vectorHex))
}
