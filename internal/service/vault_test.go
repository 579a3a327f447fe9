package service

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCredentialVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	for _, plain := range []string{"secret", "p@ss w0rd;--", "密码"} {
		c := v.Encrypt(plain)
		assert.NotEmpty(t, c)
		assert.NotContains(t, c, plain)
		assert.Equal(t, plain, v.Decrypt(c))
	}

	// 相同明文每次加密结果不同
	assert.NotEqual(t, v.Encrypt("same"), v.Encrypt("same"))
}

func TestCredentialVault_Empty(t *testing.T) {
	v := newTestVault(t)
	assert.Equal(t, "", v.Encrypt(""))
	assert.Equal(t, "", v.Decrypt(""))
}

func TestCredentialVault_BadInput(t *testing.T) {
	v := newTestVault(t)
	assert.Equal(t, "", v.Decrypt("not base64 !!"))
	assert.Equal(t, "", v.Decrypt("c2hvcnQ"))

	other, err := NewCredentialVaultWithKey([]byte("0123456789abcdef0123456789abcdef"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "", other.Decrypt(v.Encrypt("secret")))
}

func TestCredentialVault_KeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keys", "credential.key")

	first, err := NewCredentialVault(keyFile, zap.NewNop())
	require.NoError(t, err)
	cipherText := first.Encrypt("secret")

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	second, err := NewCredentialVault(keyFile, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "secret", second.Decrypt(cipherText))
}

func TestCredentialVault_InvalidKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "credential.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("dG9vLXNob3J0"), 0o600))

	_, err := NewCredentialVault(keyFile, zap.NewNop())
	assert.Error(t, err)

	_, err = NewCredentialVault("", zap.NewNop())
	assert.Error(t, err)
}
