package validation

import "testing"

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{name: "valid visa test number", number: "4242424242424242", want: true},
		{name: "valid mastercard test number", number: "5555555555554444", want: true},
		{name: "checksum mismatch", number: "4242424242424241", want: false},
		{name: "too short", number: "42424242424", want: false},
		{name: "too long", number: "42424242424242424242", want: false},
		{name: "non digits", number: "4242-4242-4242-4242", want: false},
		{name: "empty", number: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCardNumber(tt.number); got != tt.want {
				t.Errorf("IsValidCardNumber(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}
