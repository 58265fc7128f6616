package horosafe

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret([]byte("short")); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("short secret: got %v", err)
	}
	if err := ValidateSecret(bytes.Repeat([]byte("k"), MinSecretLen)); err != nil {
		t.Fatalf("valid secret: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	// WHAT: Contact addresses pointing inside the network are refused.
	// WHY: Target metadata is scraped from the public internet and untrusted.
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://203.0.113.10/agent", false},
		{"ftp://agent.example/inbox", true},
		{"javascript:alert(1)", true},
		{"http://127.0.0.1/admin", true},
		{"http://10.1.2.3/hook", true},
		{"http://192.168.0.4/api", true},
		{"http://172.20.0.1/api", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://[::1]/api", true},
		{"http:///nohost", true},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader(strings.Repeat("x", 11)), 10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized: got %v", err)
	}
}
