package crypto

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPasscode(t *testing.T) {
	hash, err := HashPasscode("open-sesame")
	if err != nil {
		t.Fatalf("HashPasscode() returned error: %v", err)
	}

	// the raw passcode must never appear in the stored hash
	if strings.Contains(hash, "open-sesame") {
		t.Fatalf("HashPasscode() stored the raw passcode")
	}

	if !VerifyPasscode(hash, "open-sesame") {
		t.Errorf("VerifyPasscode() = false for the correct passcode")
	}
	if VerifyPasscode(hash, "open-sesame ") {
		t.Errorf("VerifyPasscode() = true for a near-miss passcode")
	}
	if VerifyPasscode(hash, "") {
		t.Errorf("VerifyPasscode() = true for an empty passcode")
	}
	if VerifyPasscode("not-a-bcrypt-hash", "open-sesame") {
		t.Errorf("VerifyPasscode() = true for a malformed hash")
	}
}

// bcrypt salts each hash, so hashing the same passcode twice must give
// different hashes that both verify
func TestHashPasscodeSalted(t *testing.T) {
	first, err := HashPasscode("1234")
	if err != nil {
		t.Fatalf("HashPasscode() returned error: %v", err)
	}
	second, err := HashPasscode("1234")
	if err != nil {
		t.Fatalf("HashPasscode() returned error: %v", err)
	}

	if first == second {
		t.Errorf("HashPasscode() produced identical hashes for the same passcode")
	}
	if !VerifyPasscode(first, "1234") || !VerifyPasscode(second, "1234") {
		t.Errorf("VerifyPasscode() = false for a valid hash")
	}
}

func TestHashPasscodeValidation(t *testing.T) {
	tests := []struct {
		name     string
		passcode string
	}{
		{name: "empty", passcode: ""},
		{name: "over bcrypt limit", passcode: strings.Repeat("x", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HashPasscode(tt.passcode); err == nil {
				t.Errorf("HashPasscode() expected error, got nil")
			}
		})
	}
}
