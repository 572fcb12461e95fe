package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"forexhub/pkg/jwt"
)

func adminToken(t *testing.T) string {
	t.Helper()
	raw, err := jwt.GenerateToken("secret", 1, "admin@example.com", true, time.Hour)
	require.NoError(t, err)
	return raw
}

func memberToken(t *testing.T) string {
	t.Helper()
	raw, err := jwt.GenerateToken("secret", 2, "member@example.com", false, time.Hour)
	require.NoError(t, err)
	return raw
}
