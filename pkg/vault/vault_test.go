package vault

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "recall.key"), []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext must differ from plaintext")
	}

	decrypted, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("round trip mismatch: got %q", decrypted)
	}
}

func TestKeyfilePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.key")
	passphrase := []byte("same passphrase")

	v1, err := Open(path, passphrase)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	ciphertext, err := v1.Encrypt([]byte("persisted secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	v2, err := Open(path, passphrase)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	plaintext, err := v2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt with reopened vault: %v", err)
	}
	if string(plaintext) != "persisted secret" {
		t.Fatalf("expected persisted secret, got %q", plaintext)
	}
}

func TestWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.key")
	if _, err := Open(path, []byte("right")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Open(path, []byte("wrong")); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "recall.key"), []byte("pw"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ciphertext, err := v.Encrypt([]byte("data"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF
	if _, err := v.Decrypt(ciphertext); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}
