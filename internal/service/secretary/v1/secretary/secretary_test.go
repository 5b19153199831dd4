package secretary

import (
	"testing"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSecretary(t *testing.T, key string) *Secretary {
	t.Helper()
	s, err := NewSecretaryService(&config.SecretConfig{SecretKey: key})
	require.NoError(t, err)
	return s
}

func TestEncodeDecode(t *testing.T) {
	s := newSecretary(t, "test-key")
	encoded := s.Encode("alice")
	assert.NotEqual(t, "alice", encoded)
	assert.Equal(t, encoded, s.Encode("alice"))

	decoded, err := s.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "alice", decoded)

	_, err = s.Decode("zz")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	s := newSecretary(t, "test-key")
	accessToken, accountID, err := s.NewToken()
	require.NoError(t, err)
	assert.Len(t, accountID, AccountNumberLength)
	assert.NoError(t, goluhn.Validate(accountID))

	got, err := s.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)

	again, err := s.GetTokenForUser(accountID)
	require.NoError(t, err)
	got, err = s.ValidateToken(again)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	issuer := newSecretary(t, "key-one")
	verifier := newSecretary(t, "key-two")
	accessToken, _, err := issuer.NewToken()
	require.NoError(t, err)
	_, err = verifier.ValidateToken(accessToken)
	assert.Error(t, err)
}

func TestValidateTokenRejectsNonLuhnAccount(t *testing.T) {
	s := newSecretary(t, "test-key")
	accessToken, err := s.GetTokenForUser("1234567812345678")
	require.NoError(t, err)
	_, err = s.ValidateToken(accessToken)
	assert.Error(t, err)
}
