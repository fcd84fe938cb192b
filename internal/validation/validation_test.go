package validation

import "testing"

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"mug", true},
		{"ceramic-mug", true},
		{"mug-2", true},
		{"42", true},
		{"", false},
		{"-mug", false},
		{"mug-", false},
		{"ceramic--mug", false},
		{"Ceramic-Mug", false},
		{"ceramic mug", false},
		{"ceramic_mug", false},
		{"кружка", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := IsValidSlug(tt.slug); got != tt.want {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
			}
		})
	}
}

func TestIsValidPincode(t *testing.T) {
	tests := []struct {
		pincode string
		want    bool
	}{
		{"560001", true},
		{"000000", true},
		{"56000", false},
		{"5600011", false},
		{"56000a", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPincode(tt.pincode); got != tt.want {
			t.Errorf("IsValidPincode(%q) = %v, want %v", tt.pincode, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"9876543210", true},
		{"0000000000", true},
		{"987654321", false},
		{"98765432100", false},
		{"98765-4321", false},
		{"+919876543210", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.phone); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}
