package crypto

import (
	"bytes"
	"testing"
)

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	t.Parallel()

	pw := []byte("p@ssw0rd")
	h1, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("hashes of the same password must differ by salt")
	}
	if bytes.Contains(h1, pw) {
		t.Fatalf("hash leaks the plaintext")
	}
	if !VerifyPassword(pw, h1) || !VerifyPassword(pw, h2) {
		t.Fatalf("VerifyPassword rejected a valid password")
	}
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	t.Parallel()

	h, err := HashPassword([]byte("secret1"))
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if VerifyPassword([]byte("secret2"), h) {
		t.Fatalf("wrong password accepted")
	}
	if VerifyPassword([]byte("secret1"), []byte("not-a-bcrypt-hash")) {
		t.Fatalf("malformed hash accepted")
	}
}
