package main

import (
	"encoding/hex"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 2*TokenBytes {
		t.Errorf("token length %d, want %d", len(a), 2*TokenBytes)
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("token %q is not hex: %v", a, err)
	}
	if a == b {
		t.Error("two tokens are equal")
	}
}
