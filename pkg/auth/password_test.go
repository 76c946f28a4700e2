package auth

import "testing"

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("secret123"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("abcdef"); err != nil {
		t.Fatalf("six characters should be the minimum, got: %v", err)
	}
	for _, pw := range []string{"", "abc", "12345"} {
		if err := ValidatePassword(pw); err == nil {
			t.Fatalf("expected password %q to fail", pw)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("alice@example.com"); err != nil {
		t.Fatalf("expected valid email, got: %v", err)
	}
	for _, email := range []string{"", "no-at-sign", "a@b", "two words@x.com", "a@b@c.com "} {
		if err := ValidateEmail(email); err == nil {
			t.Fatalf("expected email %q to fail", email)
		}
	}
}
