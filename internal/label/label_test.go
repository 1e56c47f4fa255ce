package label

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "empty", in: "", want: ""},
		{name: "ascii", in: "vertex-buffer", want: "vertex-buffer"},
		{name: "nfc composes", in: "cafe\u0301", want: "caf\u00e9"},
		{name: "nul", in: "bad\x00label", wantErr: ErrNUL},
		{name: "invalid utf8", in: "bad\xfflabel", wantErr: ErrEncoding},
		{name: "too long", in: strings.Repeat("a", MaxLen+1), wantErr: ErrTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Sanitize(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sanitize(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
