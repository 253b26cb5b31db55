package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	creds := Credentials{Username: "operator", Password: "hunter2"}

	sealed, err := EncryptCredentials(creds, "correct horse")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}

	got, err := DecryptCredentials(sealed, "correct horse")
	if err != nil {
		t.Fatalf("DecryptCredentials: %v", err)
	}
	if got != creds {
		t.Errorf("round trip = %+v, want %+v", got, creds)
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	sealed, err := EncryptCredentials(Credentials{Username: "operator", Password: "hunter2"}, "right")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}

	if _, err := DecryptCredentials(sealed, "wrong"); err == nil {
		t.Error("want error with wrong passphrase")
	}
}

func TestEncrypt_Validation(t *testing.T) {
	if _, err := EncryptCredentials(Credentials{Username: "operator", Password: "x"}, ""); err == nil {
		t.Error("want error for empty passphrase")
	}
	if _, err := EncryptCredentials(Credentials{}, "pass"); err == nil {
		t.Error("want error for empty credentials")
	}
}

func TestLoadCredentials(t *testing.T) {
	// Plain config wins.
	got, err := LoadCredentials(CredentialsConfig{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("LoadCredentials plain: %v", err)
	}
	if got.Username != "u" || got.Password != "p" {
		t.Errorf("got = %+v", got)
	}

	// Encrypted file path.
	sealed, err := EncryptCredentials(Credentials{Username: "operator", Password: "hunter2"}, "pass")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}
	path := filepath.Join(t.TempDir(), "iol.enc.json")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err = LoadCredentials(CredentialsConfig{EncryptedPath: path, Passphrase: "pass"})
	if err != nil {
		t.Fatalf("LoadCredentials encrypted: %v", err)
	}
	if got.Username != "operator" {
		t.Errorf("got = %+v", got)
	}

	// Nothing configured.
	if _, err := LoadCredentials(CredentialsConfig{}); err == nil {
		t.Error("want error with no source configured")
	}
}
