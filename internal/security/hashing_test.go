package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	password := []byte("Secret1!")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if hash == string(password) {
		t.Fatal("Hash returned the plaintext")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !h.Verify(password, hash) {
		t.Fatal("Verify should accept the original secret")
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	secret := []byte("same-secret")
	h1, err := h.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := h.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same secret should differ")
	}
	if !h.Verify(secret, h1) || !h.Verify(secret, h2) {
		t.Fatal("both hashes should verify")
	}
}

func TestHasher_VerifyWrongSecret(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare with wrong secret should fail")
	}
	if h.Verify([]byte("wrong"), hash) {
		t.Fatal("Verify with wrong secret should be false")
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, hash := range []string{"", "not-a-bcrypt-hash", "$2a$10$short"} {
		if h.Verify([]byte("secret"), hash) {
			t.Errorf("Verify(%q) should be false", hash)
		}
	}
}

func TestHasher_HashErrors(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if _, err := h.Hash(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("Hash(nil): want ErrEmptySecret, got %v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := h.Hash(long); err == nil {
		t.Error("Hash of a 73-byte secret should fail")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h0 := NewHasher(0); h0.Cost != bcrypt.DefaultCost {
		t.Errorf("zero cost should select DefaultCost, got %d", h0.Cost)
	}
	if hMax := NewHasher(99); hMax.Cost != bcrypt.MaxCost {
		t.Errorf("cost should be clamped to MaxCost, got %d", hMax.Cost)
	}
}
