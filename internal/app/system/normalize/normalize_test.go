package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Email(tt.input); got != tt.want {
			t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name("  Dilnoza   Karimova "); got != "Dilnoza Karimova" {
		t.Errorf("Name() = %q", got)
	}
}

func TestRole(t *testing.T) {
	if got := Role(" Moderator "); got != "moderator" {
		t.Errorf("Role() = %q", got)
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+998 (90) 123-45-67", "+998901234567"},
		{"90 123 45 67", "901234567"},
		{"1+2", "12"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Phone(tt.input); got != tt.want {
			t.Errorf("Phone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUsernameKey_MatchesCaseInsensitively(t *testing.T) {
	if UsernameKey("Aziza") != UsernameKey(" aziza ") {
		t.Error("expected folded keys to match")
	}
}
