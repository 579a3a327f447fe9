package service

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/haierkeys/db-backup-service/pkg/fileurl"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

// CredentialVault encrypts secrets at rest.
// Empty input maps to empty output. Decrypt never fails loudly: it logs and returns "".
// CredentialVault 凭据加解密，空输入返回空；解密失败记录日志并返回空字符串
type CredentialVault interface {
	Encrypt(plain string) string
	Decrypt(cipher string) string
}

type chachaVault struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// NewCredentialVault loads the key from keyFile, generating it on first use
// NewCredentialVault 从 keyFile 读取密钥，不存在时生成
func NewCredentialVault(keyFile string, logger *zap.Logger) (CredentialVault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := loadOrCreateKey(keyFile, logger)
	if err != nil {
		return nil, err
	}
	return NewCredentialVaultWithKey(key, logger)
}

// NewCredentialVaultWithKey 使用给定的 32 字节密钥创建
func NewCredentialVaultWithKey(key []byte, logger *zap.Logger) (CredentialVault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "init credential cipher")
	}
	return &chachaVault{aead: aead, logger: logger}, nil
}

func loadOrCreateKey(keyFile string, logger *zap.Logger) ([]byte, error) {
	if keyFile == "" {
		return nil, errors.New("credential key file path is empty")
	}

	if fileurl.IsFile(keyFile) {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, errors.Wrap(err, "read credential key file")
		}
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, errors.Wrap(err, "decode credential key file")
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, errors.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
		}
		return key, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate credential key")
	}
	if err := fileurl.EnsureDir(filepath.Dir(keyFile), 0o700); err != nil {
		return nil, errors.Wrap(err, "create credential key directory")
	}
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, errors.Wrap(err, "write credential key file")
	}
	logger.Info("credential key generated", zap.String(pkglogger.FieldPath, keyFile))
	return key, nil
}

// Encrypt 返回 base64url(nonce|密文)
func (v *chachaVault) Encrypt(plain string) string {
	if plain == "" {
		return ""
	}
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		v.logger.Error("generate nonce failed", zap.Error(err))
		return ""
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed)
}

func (v *chachaVault) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		v.logger.Warn("credential is not valid base64", zap.Error(err))
		return ""
	}
	if len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		v.logger.Warn("credential ciphertext too short")
		return ""
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		v.logger.Warn("credential decryption failed", zap.Error(err))
		return ""
	}
	return string(plain)
}

var _ CredentialVault = (*chachaVault)(nil)
