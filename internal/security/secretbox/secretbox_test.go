package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(fill byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = fill + byte(i)
	}
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	box, err := New(testKey(1))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	msg := "upstream-token ✓ — secreto"
	ct, err := box.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := box.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	t.Parallel()

	box, err := New(testKey(100))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	ct, err := box.Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 2 {
		t.Fatalf("unexpected ct format")
	}
	// corromper un byte del ciphertext (base64 -> bytes -> flip -> base64)
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(bs) == 0 {
		t.Fatal("empty ct")
	}
	bs[0] ^= 0x01 // flip
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	if _, err := box.Decrypt(corrupted); err == nil {
		t.Fatalf("expected auth error, got nil")
	}
}

func TestDecrypt_RejectsMalformedBlob(t *testing.T) {
	t.Parallel()

	box, err := New(testKey(7))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	for _, blob := range []string{
		"",
		"sin-separador",
		"a|b|c",
		"!!!notbase64!!!|" + base64.StdEncoding.EncodeToString([]byte("x")),
		base64.StdEncoding.EncodeToString([]byte("short")) + "|" + base64.StdEncoding.EncodeToString([]byte("x")),
	} {
		if _, err := box.Decrypt(blob); err == nil {
			t.Fatalf("expected error for blob %q", blob)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Parallel()

	a, _ := New(testKey(1))
	b, _ := New(testKey(2))

	ct, err := a.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(ct); err == nil {
		t.Fatalf("decrypt with wrong key must fail")
	}
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := New(make([]byte, n)); err == nil {
			t.Fatalf("expected error for key of %d bytes", n)
		}
	}
}
