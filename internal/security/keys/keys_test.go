package keys

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()

	secret := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	d1, err := NewDeriver(secret)
	if err != nil {
		t.Fatalf("NewDeriver err: %v", err)
	}
	d2, err := NewDeriver(secret)
	if err != nil {
		t.Fatalf("NewDeriver err: %v", err)
	}

	k1, err := d1.StateSigningKey()
	if err != nil {
		t.Fatalf("StateSigningKey err: %v", err)
	}
	k2, err := d2.StateSigningKey()
	if err != nil {
		t.Fatalf("StateSigningKey err: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("same secret+domain must derive same key")
	}
	if len(k1) != KeyLength {
		t.Fatalf("key length: got %d want %d", len(k1), KeyLength)
	}
}

func TestDerive_DomainSeparation(t *testing.T) {
	t.Parallel()

	d, err := NewDeriver(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x07}, 32)))
	if err != nil {
		t.Fatalf("NewDeriver err: %v", err)
	}
	sign, err := d.StateSigningKey()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := d.CredentialKey()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(sign, enc) {
		t.Fatalf("state-signing y credential keys no deben coincidir")
	}
}

func TestNewDeriver_RejectsWeakSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewDeriver(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewDeriver("short"); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestNewDeriver_AcceptsRawAndBase64(t *testing.T) {
	t.Parallel()

	raw := "this-is-a-long-enough-raw-secret"
	d1, err := NewDeriver(raw)
	if err != nil {
		t.Fatalf("raw secret rejected: %v", err)
	}
	d2, err := NewDeriver(base64.StdEncoding.EncodeToString([]byte(raw)))
	if err != nil {
		t.Fatalf("base64 secret rejected: %v", err)
	}

	k1, _ := d1.Derive(DomainStateSigning)
	k2, _ := d2.Derive(DomainStateSigning)
	// base64 decodifica al mismo material => misma clave
	if !bytes.Equal(k1, k2) {
		t.Fatalf("base64(secret) and raw secret should derive the same key")
	}
}
