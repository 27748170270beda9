package server

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		username string
		ok       bool
	}{
		{"bob", true},
		{"bob_smith_42", true},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"bob smith", false},
		{"bob@example", false},
		{"", false},
	}
	for _, c := range cases {
		if ok, _ := validateUsername(c.username); ok != c.ok {
			t.Errorf("validateUsername(%q) = %v, want %v", c.username, ok, c.ok)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"password1", true},
		{"Abcdef12", true},
		{"short1a", false},
		{"nonumbershere", false},
		{"123456789", false},
		{strings.Repeat("a1", 65), false},
	}
	for _, c := range cases {
		if ok, _ := validatePassword(c.password); ok != c.ok {
			t.Errorf("validatePassword(%q) = %v, want %v", c.password, ok, c.ok)
		}
	}
}
