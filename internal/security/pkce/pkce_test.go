package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func randomVerifier(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestVerify_S256(t *testing.T) {
	t.Parallel()

	v := randomVerifier(t)
	ch := ChallengeS256(v)

	if !Verify(MethodS256, ch, v) {
		t.Fatalf("valid S256 pair must verify")
	}
	// método vacío => S256 por default
	if !Verify("", ch, v) {
		t.Fatalf("empty method must default to S256")
	}
}

func TestVerify_S256_SingleCharMutationFails(t *testing.T) {
	t.Parallel()

	v := randomVerifier(t)
	ch := ChallengeS256(v)

	// mutar un carácter del verifier
	mutated := []byte(v)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	if Verify(MethodS256, ch, string(mutated)) {
		t.Fatalf("mutated verifier must not verify")
	}

	// mutar un carácter del challenge
	mch := []byte(ch)
	if mch[0] == 'A' {
		mch[0] = 'B'
	} else {
		mch[0] = 'A'
	}
	if Verify(MethodS256, string(mch), v) {
		t.Fatalf("mutated challenge must not verify")
	}
}

func TestVerify_Plain(t *testing.T) {
	t.Parallel()

	if !Verify(MethodPlain, "same-value", "same-value") {
		t.Fatalf("plain equal pair must verify")
	}
	if Verify(MethodPlain, "same-value", "other-value") {
		t.Fatalf("plain unequal pair must fail")
	}
}

func TestVerify_EdgeCases(t *testing.T) {
	t.Parallel()

	if Verify(MethodS256, "", "verifier") {
		t.Fatalf("empty challenge must fail")
	}
	if Verify(MethodS256, "challenge", "") {
		t.Fatalf("empty verifier must fail")
	}
	if Verify("md5", "challenge", "challenge") {
		t.Fatalf("unknown method must fail")
	}
}
