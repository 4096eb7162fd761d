package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeygenPrintsUsableKey(t *testing.T) {
	var out bytes.Buffer
	cmd := keygenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	key := strings.TrimSpace(out.String())
	cipher, err := secure.NewCipher(key, zap.NewNop())
	require.NoError(t, err)

	token, err := cipher.Encrypt("4510 123456")
	require.NoError(t, err)
	assert.Equal(t, "4510 123456", cipher.Decrypt(token))
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URI", "")
	databaseURI = ""

	cmd := migrateCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URI")
}
