package cloud

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("remote-secret"))
	require.NoError(t, err)
	return token
}

func TestSessionFromTokenMetadata(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"sub": "omar",
		"user_metadata": map[string]any{
			"display_name": "Omar P.",
			"role":         "operator",
		},
	})
	s, err := sessionFromToken("omar", token)
	require.NoError(t, err)
	assert.Equal(t, "Omar P.", s.DisplayName)
	assert.Equal(t, "operator", s.Role)
	assert.Equal(t, token, s.AccessToken)
}

func TestSessionFromTokenTopLevelRole(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{"sub": "ana", "role": "admin"})
	s, err := sessionFromToken("ana", token)
	require.NoError(t, err)
	assert.Equal(t, "admin", s.Role)
	assert.Empty(t, s.DisplayName)
}

func TestSessionFromTokenMalformed(t *testing.T) {
	_, err := sessionFromToken("ana", "not-a-jwt")
	assert.Error(t, err)
}
