package crypto

import (
	"strings"
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr error
	}{
		{"valid 32-byte key", 32, nil},
		{"too short key", 16, ErrInvalidKey},
		{"too long key", 64, ErrInvalidKey},
		{"empty key", 0, ErrInvalidKey},
		{"31 bytes", 31, ErrInvalidKey},
		{"33 bytes", 33, ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keyLen)
			for i := range key {
				key[i] = byte(i % 256)
			}

			enc, err := NewEncryptor(key)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("NewEncryptor() error = %v, want %v", err, tt.wantErr)
				}
				if enc != nil {
					t.Error("NewEncryptor() returned non-nil encryptor on error")
				}
			} else {
				if err != nil {
					t.Errorf("NewEncryptor() unexpected error = %v", err)
				}
				if enc == nil {
					t.Error("NewEncryptor() returned nil encryptor")
				}
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"simple text", "hello world"},
		{"unicode text", "clubhouse ☀ rowing"},
		{"long text", strings.Repeat("a", 10000)},
		{"special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"newlines", "line1\nline2\r\nline3"},
		{"JSON data", `{"username": "coach", "password": "s3cret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if ciphertext == tt.plaintext {
				t.Error("Encrypt() returned plaintext unchanged")
			}

			decrypted, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	first, err := enc.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := enc.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptWrongKeyFailsClosed(t *testing.T) {
	keyA, _ := GenerateKey()
	keyB, _ := GenerateKey()

	encA, _ := NewEncryptor(keyA)
	encB, _ := NewEncryptor(keyB)

	ciphertext, err := encA.Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	plaintext, err := encB.Decrypt(ciphertext)
	if err == nil {
		t.Fatal("Decrypt() with wrong key succeeded")
	}
	if plaintext != "" {
		t.Errorf("Decrypt() with wrong key leaked partial plaintext %q", plaintext)
	}
}

func TestDecryptGarbage(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"too short", "YWJj"}, // "abc" decoded, shorter than nonce
		{"tampered", func() string {
			ct, _ := enc.Encrypt("payload")
			b := []byte(ct)
			if b[0] == 'A' {
				b[0] = 'B'
			} else {
				b[0] = 'A'
			}
			return string(b)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Decrypt(tt.input); err == nil {
				t.Error("Decrypt() accepted invalid ciphertext")
			}
		})
	}
}

func TestCredentialsRoundtrip(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	creds := Credentials{Username: "bookings@lmrc.example", Password: "pa55word!"}

	blob, err := enc.EncryptCredentials(creds)
	if err != nil {
		t.Fatalf("EncryptCredentials() error = %v", err)
	}

	got, err := enc.DecryptCredentials(blob)
	if err != nil {
		t.Fatalf("DecryptCredentials() error = %v", err)
	}
	if got != creds {
		t.Errorf("DecryptCredentials() = %+v, want %+v", got, creds)
	}
}

func TestDecryptCredentialsEmptyBlob(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	if _, err := enc.DecryptCredentials(""); err == nil {
		t.Error("DecryptCredentials(\"\") should fail")
	}
}
