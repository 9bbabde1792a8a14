package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func TestHashAndVerify(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	encoded, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected format: %s", encoded)
	}

	ok, err := h.Verify("correct-horse", encoded)
	if err != nil || !ok {
		t.Fatalf("verify: %v %v", ok, err)
	}
	ok, err = h.Verify("wrong-password", encoded)
	if err != nil || ok {
		t.Fatalf("wrong password: %v %v", ok, err)
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h, _ := NewHasher(testConfig())

	a, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h, _ := NewHasher(testConfig())
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("short password must be rejected")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	h, _ := NewHasher(testConfig())
	if _, err := h.Verify("whatever-pass", "not-a-phc-string"); err == nil {
		t.Fatal("garbage hash must error")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewHasher(testConfig())
	encoded, err := weak.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	strongCfg := testConfig()
	strongCfg.Memory = 64 * 1024
	strong, _ := NewHasher(strongCfg)

	up, err := strong.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("needs upgrade: %v", err)
	}
	if !up {
		t.Fatal("weaker parameters must report an upgrade")
	}

	up, err = weak.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("needs upgrade: %v", err)
	}
	if up {
		t.Fatal("matching parameters must not report an upgrade")
	}
}

func TestNewHasherParameterFloor(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("below-floor memory must be rejected")
	}
}
