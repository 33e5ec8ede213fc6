package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"local preview", "http://localhost:3000", false},
		{"https", "https://127.0.0.1:8443/index.html", false},
		{"file scheme", "file:///etc/passwd", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"command injection", "http://localhost:3000/;rm -rf", true},
		{"backticks", "http://localhost:3000/`id`", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"localhost", "127.0.0.1", "::1"}

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"localhost any port", "http://localhost:3000", false},
		{"localhost no port", "http://localhost", false},
		{"loopback v4", "http://127.0.0.1:5173", false},
		{"loopback v6", "http://[::1]:3000", false},
		{"case insensitive", "http://LOCALHOST:3000", false},
		{"remote", "http://evil.example:3000", true},
		{"lookalike", "http://localhost.evil.example", true},
		{"bad scheme", "file://localhost", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
