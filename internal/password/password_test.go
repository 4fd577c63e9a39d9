package password_test

import (
	"testing"

	"github.com/ErlanBelekov/tourbook/internal/password"
	"golang.org/x/crypto/bcrypt"
)

func TestHashCompare(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	hashed, err := h.Hash("pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hashed == "pass1234" {
		t.Fatal("hash must not equal the plaintext")
	}

	ok, err := h.Compare(hashed, "pass1234")
	if err != nil || !ok {
		t.Errorf("Compare(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Compare(hashed, "wrong-password")
	if err != nil || ok {
		t.Errorf("Compare(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestCompare_MalformedHash(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	if _, err := h.Compare("not-a-bcrypt-hash", "pass1234"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	h := password.NewHasher(100)

	hashed, err := h.Hash("pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != password.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, password.DefaultCost)
	}
}
