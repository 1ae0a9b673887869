package security

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := svc.Seal("What is this about?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "about") {
		t.Errorf("sealed = %q", sealed)
	}
	again, _ := svc.Seal("What is this about?")
	if again == sealed {
		t.Error("nonce reused")
	}
	plain, err := svc.Open(sealed)
	if err != nil || plain != "What is this about?" {
		t.Errorf("Open = %q, %v", plain, err)
	}
	if plain, _ := svc.Open("stored in clear"); plain != "stored in clear" {
		t.Errorf("clear value changed: %q", plain)
	}
	if _, err := svc.Open(sealedPrefix + "!!"); !errors.Is(err, ErrMalformedCiphertext) {
		t.Errorf("garbage err = %v", err)
	}
}

func TestNilServicePassesThrough(t *testing.T) {
	svc, err := NewEncryptionService("")
	if err != nil || svc != nil {
		t.Fatalf("empty key: svc=%v err=%v", svc, err)
	}
	if svc.Enabled() {
		t.Error("nil service enabled")
	}
	out, _ := svc.Seal("x")
	if out != "x" {
		t.Errorf("Seal = %q", out)
	}
	if _, err := svc.Open(sealedPrefix + "abc"); err == nil {
		t.Error("nil service opened ciphertext")
	}
}

func TestRejectsBadKeyLength(t *testing.T) {
	if _, err := NewEncryptionService("short"); err == nil {
		t.Error("short key accepted")
	}
}
