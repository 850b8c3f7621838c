package password

import (
	"errors"
	"strings"
	"testing"
)

func testParams() Params {
	// Minimal costs so the suite stays fast.
	return Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("not PHC encoded: %q", encoded)
	}

	ok, err := h.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify("wrong password!", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v; want false", ok, err)
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same password!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same password!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	h := newTestHasher(t)

	for _, encoded := range []string{
		"",
		"plainhash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := h.Verify("whatever password", encoded); err == nil {
			t.Fatalf("accepted malformed hash %q", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	encoded, err := weak.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := testParams()
	stronger.Time = 3
	h, err := NewHasher(stronger)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	up, err := h.NeedsRehash(encoded)
	if err != nil || !up {
		t.Fatalf("NeedsRehash(weaker) = %v, %v; want true", up, err)
	}
	up, err = weak.NeedsRehash(encoded)
	if err != nil || up {
		t.Fatalf("NeedsRehash(same) = %v, %v; want false", up, err)
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	p := testParams()
	p.Memory = 1024
	if _, err := NewHasher(p); err == nil {
		t.Fatal("expected low memory to fail")
	}
	p = testParams()
	p.SaltLength = 8
	if _, err := NewHasher(p); err == nil {
		t.Fatal("expected short salt to fail")
	}
}
