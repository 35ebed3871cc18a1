package profile

import "testing"

func TestUserLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		user   *User
		expect string
	}{
		{name: "nil user", user: nil, expect: "Not specified"},
		{name: "no address", user: &User{Name: "Asha"}, expect: "Not specified"},
		{
			name:   "city and state",
			user:   &User{Address: &Address{City: " Pune ", State: "Maharashtra"}},
			expect: "Pune, Maharashtra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.user.Location(); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestRegisteredAddress(t *testing.T) {
	u := &User{Address: &Address{Street: "MG Road", City: "Pune", State: "MH", Pincode: "411001"}}
	if got := u.RegisteredAddress(); got != "MG Road, Pune, MH - 411001" {
		t.Fatalf("unexpected address: %q", got)
	}

	var empty *User
	if got := empty.RegisteredAddress(); got != "Not available" {
		t.Fatalf("unexpected address for nil user: %q", got)
	}
}

func TestDisplayOr(t *testing.T) {
	if got := DisplayOr("  ", "Not provided"); got != "Not provided" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := DisplayOr(" Ravi ", "Not provided"); got != "Ravi" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}
