package errors

import (
	"strings"
	"testing"
)

func TestValidateTechName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Go", false},
		{"with spaces", "Google Cloud", false},
		{"with symbols", "C++", false},
		{"unicode", "Señor SQL", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("x", 200), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTechName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTechName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidDataset) {
				t.Errorf("ValidateTechName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidDataset)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/data.json", false},
		{"http", "http://localhost:8080/data.json", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"file", "file:///etc/passwd", true},
		{"javascript", "javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "data/techmap.json", false},
		{"absolute", "/var/lib/techmap/data.yaml", false},
		{"dotted name", "data/v1..2.json", false},

		{"empty", "", true},
		{"traversal", "../secrets.json", true},
		{"nested traversal", "data/../../etc/passwd", true},
		{"null byte", "data\x00.json", true},
		{"too long", strings.Repeat("a", 600), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateYear(t *testing.T) {
	for _, y := range []int{1900, 2020, 2200} {
		if err := ValidateYear(y); err != nil {
			t.Errorf("ValidateYear(%d) error = %v, want nil", y, err)
		}
	}
	for _, y := range []int{0, 1899, 2201, -5} {
		if err := ValidateYear(y); err == nil {
			t.Errorf("ValidateYear(%d) error = nil, want error", y)
		}
	}
}
