package crypto

import (
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSigningKey *rsa.PrivateKey

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	if testSigningKey == nil {
		key, err := GenerateRSAKey()
		require.NoError(t, err)
		testSigningKey = key
	}
	return testSigningKey
}

func TestSignVerifyDigest(t *testing.T) {
	key := signingKey(t)
	digest := SHA256([]byte("envelope bytes"))

	sig, err := SignDigest(key, digest)
	require.NoError(t, err)
	require.Len(t, sig, RSAKeyBits/8)

	require.NoError(t, VerifyDigest(&key.PublicKey, digest, sig))

	t.Run("different digest", func(t *testing.T) {
		other := SHA256([]byte("other bytes"))
		require.ErrorIs(t, VerifyDigest(&key.PublicKey, other, sig), ErrInvalidSignature)
	})

	t.Run("tampered signature", func(t *testing.T) {
		tampered := append([]byte{}, sig...)
		tampered[len(tampered)-1] ^= 0x01
		require.ErrorIs(t, VerifyDigest(&key.PublicKey, digest, tampered), ErrInvalidSignature)
	})

	t.Run("nil keys", func(t *testing.T) {
		_, err := SignDigest(nil, digest)
		require.ErrorIs(t, err, ErrInvalidKey)
		require.ErrorIs(t, VerifyDigest(nil, digest, sig), ErrInvalidKey)
	})
}

func TestKeyMarshalRoundTrip(t *testing.T) {
	key := signingKey(t)

	privDER, err := MarshalPrivateKey(key)
	require.NoError(t, err)
	parsedPriv, err := ParsePrivateKey(privDER)
	require.NoError(t, err)
	require.True(t, key.Equal(parsedPriv))

	pubDER, err := MarshalPublicKey(&key.PublicKey)
	require.NoError(t, err)
	parsedPub, err := ParsePublicKey(pubDER)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(parsedPub))

	_, err = ParsePrivateKey([]byte("garbage"))
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParsePublicKey([]byte("garbage"))
	require.ErrorIs(t, err, ErrInvalidKey)
}
