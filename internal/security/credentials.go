// Package security stores the collector app key outside the plain-text
// configuration file: in the OS keyring when one is available, otherwise in
// an encrypted file under the state directory.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"github.com/nimogit/beacon/internal/common"
	"github.com/nimogit/beacon/pkg/errors"
)

const (
	keyringService = "beacon"
	appKeyName     = "app_key"

	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32 // AES-256
)

// CredentialStore persists the app key. The encrypted-file fallback derives
// its master key from machine-specific data, so the file is only readable on
// the machine that wrote it.
type CredentialStore struct {
	useKeyring bool
	masterKey  []byte
	dir        string
}

// NewCredentialStore creates a store rooted in the SDK state directory.
func NewCredentialStore() (*CredentialStore, error) {
	dir, err := common.EnsureStateDir()
	if err != nil {
		return nil, err
	}

	cs := &CredentialStore{
		useKeyring: isKeyringAvailable(),
		dir:        filepath.Join(dir, "credentials"),
	}

	if !cs.useKeyring {
		key, err := cs.getMasterKey()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialize master key")
		}
		cs.masterKey = key
	}

	return cs, nil
}

// StoreAppKey stores the collector app key.
func (cs *CredentialStore) StoreAppKey(value string) error {
	if cs.useKeyring {
		if err := keyring.Set(keyringService, appKeyName, value); err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to store app key in keyring")
		}
		return nil
	}
	return cs.storeEncrypted(value)
}

// LoadAppKey retrieves the stored app key.
func (cs *CredentialStore) LoadAppKey() (string, error) {
	if cs.useKeyring {
		value, err := keyring.Get(keyringService, appKeyName)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeCredentialNotFound, "App key not found in keyring")
		}
		return value, nil
	}
	return cs.loadEncrypted()
}

// DeleteAppKey removes the stored app key.
func (cs *CredentialStore) DeleteAppKey() error {
	if cs.useKeyring {
		return keyring.Delete(keyringService, appKeyName)
	}
	return os.Remove(cs.credentialPath())
}

// Encrypted file fallback

func (cs *CredentialStore) storeEncrypted(value string) error {
	encrypted, err := cs.encrypt(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt app key")
	}

	if err := os.MkdirAll(cs.dir, common.DirPermissionSecure); err != nil {
		return err
	}
	return os.WriteFile(cs.credentialPath(), []byte(encrypted), common.FilePermissionSecure)
}

func (cs *CredentialStore) loadEncrypted() (string, error) {
	data, err := os.ReadFile(cs.credentialPath())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentialNotFound, "App key not found")
	}

	value, err := cs.decrypt(string(data))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt app key")
	}
	return value, nil
}

func (cs *CredentialStore) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cs.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cs *CredentialStore) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cs.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encrypted := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func (cs *CredentialStore) getMasterKey() ([]byte, error) {
	keyPath := filepath.Join(cs.dir, ".master")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cs.dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}

	return key, nil
}

func (cs *CredentialStore) credentialPath() string {
	return filepath.Join(cs.dir, appKeyName+".cred")
}

func isKeyringAvailable() bool {
	if os.Getenv("BEACON_USE_KEYRING") == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}
