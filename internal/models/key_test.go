package models

import (
	"errors"
	"testing"
)

func TestParseEntityKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EntityKey
		wantErr bool
	}{
		{"Simple", "acc1:Gemini Pro", EntityKey{"acc1", "Gemini Pro"}, false},
		{"ColonInResource", "acc1:model:v2", EntityKey{"acc1", "model:v2"}, false},
		{"NoColon", "acc1", EntityKey{}, true},
		{"EmptyAccount", ":Gemini", EntityKey{}, true},
		{"EmptyResource", "acc1:", EntityKey{}, true},
		{"Empty", "", EntityKey{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntityKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ParseEntityKey(%q) error = %v, want ErrInvalidKey", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntityKey(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseEntityKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEntityKey_StringParseRoundTrip(t *testing.T) {
	key := NewEntityKey("5f1c", "Gemini Flash")
	if key.String() != "5f1c:Gemini Flash" {
		t.Errorf("String() = %q", key.String())
	}

	parsed, err := ParseEntityKey(key.String())
	if err != nil || parsed != key {
		t.Errorf("ParseEntityKey(String()) = %+v, %v", parsed, err)
	}
}
