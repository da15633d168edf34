// Package vault encrypts finalized segment files under the storage root;
// the catalog database is not encrypted by it. It keeps waddle's AES-256-GCM + Argon2id core exactly, but swaps
// the key-storage backend: rather than Windows DPAPI/Credential Manager,
// which is not reachable from a portable Go build, the derived key is
// sealed inside a protected keyfile under the storage root, itself
// encrypted with a passphrase-derived key. This is documented as an open
// question resolution.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	keySize    = 32 // AES-256
	nonceSize  = 12 // GCM standard nonce
	saltSize   = 16
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
)

// ErrDecryptionFailed is returned when ciphertext fails authentication.
var ErrDecryptionFailed = errors.New("vault: decryption failed")

// Vault holds the derived data encryption key for the lifetime of the
// process. It never persists the raw key; only the keyfile on disk
// persists, sealed under the passphrase.
type Vault struct {
	key []byte
}

// keyfile is the on-disk sealed-key record: a random data key, encrypted
// with a passphrase-derived key, alongside the salt needed to re-derive
// that passphrase key.
type keyfile struct {
	Salt       []byte
	Nonce      []byte
	WrappedKey []byte
}

// Open loads (or creates, if absent) the keyfile at keyfilePath, sealed
// under passphrase, and returns a Vault ready to Encrypt/Decrypt.
func Open(keyfilePath string, passphrase []byte) (*Vault, error) {
	if _, err := os.Stat(keyfilePath); errors.Is(err, os.ErrNotExist) {
		if err := createKeyfile(keyfilePath, passphrase); err != nil {
			return nil, err
		}
	}
	kf, err := readKeyfile(keyfilePath)
	if err != nil {
		return nil, err
	}

	wrapKey := argon2.IDKey(passphrase, kf.Salt, argon2Time, argon2Memory, argon2Threads, keySize)
	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("vault: init wrap cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init wrap gcm: %w", err)
	}
	dataKey, err := gcm.Open(nil, kf.Nonce, kf.WrappedKey, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return &Vault{key: dataKey}, nil
}

func createKeyfile(path string, passphrase []byte) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("vault: generate salt: %w", err)
	}
	dataKey := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return fmt.Errorf("vault: generate data key: %w", err)
	}

	wrapKey := argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, keySize)
	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return fmt.Errorf("vault: init wrap cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("vault: init wrap gcm: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("vault: generate nonce: %w", err)
	}
	wrapped := gcm.Seal(nil, nonce, dataKey, nil)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("vault: create keyfile dir: %w", err)
	}
	contents := base64.StdEncoding.EncodeToString(salt) + "\n" +
		base64.StdEncoding.EncodeToString(nonce) + "\n" +
		base64.StdEncoding.EncodeToString(wrapped) + "\n"
	return os.WriteFile(path, []byte(contents), 0o600)
}

func readKeyfile(path string) (*keyfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vault: read keyfile: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) < 3 {
		return nil, errors.New("vault: malformed keyfile")
	}
	salt, err := base64.StdEncoding.DecodeString(lines[0])
	if err != nil {
		return nil, fmt.Errorf("vault: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(lines[1])
	if err != nil {
		return nil, fmt.Errorf("vault: decode nonce: %w", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(lines[2])
	if err != nil {
		return nil, fmt.Errorf("vault: decode wrapped key: %w", err)
	}
	return &keyfile{Salt: salt, Nonce: nonce, WrappedKey: wrapped}, nil
}

// Encrypt seals plaintext with the vault's data key, returning
// nonce||ciphertext||tag.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (v *Vault) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	if len(ciphertext) < nonceSize {
		return nil, ErrDecryptionFailed
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptFile encrypts src's contents and writes the result to dst.
func (v *Vault) EncryptFile(src, dst string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("vault: read source file: %w", err)
	}
	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, ciphertext, 0o600)
}

// DecryptFile decrypts src's contents and writes the result to dst.
func (v *Vault) DecryptFile(src, dst string) error {
	ciphertext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("vault: read encrypted file: %w", err)
	}
	plaintext, err := v.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, plaintext, 0o600)
}
