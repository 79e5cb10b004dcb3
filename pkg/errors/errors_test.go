package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeNetwork, cause, "GET %s", "https://example.com/usage.json")

	if err.Code != ErrCodeNetwork || err.Message != "GET https://example.com/usage.json" {
		t.Errorf("err = %+v", err)
	}
	if errors.Unwrap(err) != cause || !errors.Is(err, cause) {
		t.Error("Wrap should expose the cause to errors.Unwrap and errors.Is")
	}
}

func TestCodeLookup(t *testing.T) {
	geometry := New(ErrCodeInvalidGeometry, "invalid region")
	tests := []struct {
		name string
		err  error
		code Code
		msg  string
	}{
		{"coded", geometry, ErrCodeInvalidGeometry, "invalid region"},
		{"fmt wrapped", fmt.Errorf("planes.active: %w", geometry), ErrCodeInvalidGeometry, "invalid region"},
		{"outermost code wins", Wrap(ErrCodeNetwork, New(ErrCodeInvalidDataset, "bad payload"), "fetch"), ErrCodeNetwork, "fetch"},
		{"plain", errors.New("disk full"), "", "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %v, want %v", got, tt.code)
			}
			if tt.code != "" && !Is(tt.err, tt.code) {
				t.Errorf("Is(%v) = false, want true", tt.code)
			}
			if Is(tt.err, ErrCodeTimeout) {
				t.Error("Is(TIMEOUT) = true, want false")
			}
			if got := UserMessage(tt.err); got != tt.msg {
				t.Errorf("UserMessage() = %q, want %q", got, tt.msg)
			}
		})
	}

	if Is(nil, ErrCodeInvalidInput) || GetCode(nil) != "" {
		t.Error("nil error should have no code")
	}
}

func TestNewMessageFormatting(t *testing.T) {
	err := New(ErrCodeInvalidAlgorithm, "unknown algorithm %q", "grid")
	want := `INVALID_ALGORITHM: unknown algorithm "grid"`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	wrapped := Wrap(ErrCodeTimeout, errors.New("deadline"), "fetch dataset")
	if wrapped.Error() != "TIMEOUT: fetch dataset: deadline" {
		t.Errorf("Error() = %v", wrapped.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrCodeInvalidInput, "x"), 400},
		{New(ErrCodeInvalidAlgorithm, "x"), 400},
		{New(ErrCodeDatasetNotFound, "x"), 404},
		{New(ErrCodeNetwork, "x"), 502},
		{New(ErrCodeTimeout, "x"), 504},
		{New(ErrCodeUnsupported, "x"), 501},
		{errors.New("plain"), 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
