package user

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"tenant", RoleTenant, true},
		{" Owner ", RoleOwner, true},
		{"BROKER", RoleBroker, true},
		{"admin", RoleAdmin, true},
		{"superuser", Role("superuser"), false},
		{"", Role(""), false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanInitiateContact(t *testing.T) {
	if !CanInitiateContact(RoleTenant) || !CanInitiateContact(RoleAdmin) {
		t.Error("tenants and admins must be able to initiate")
	}
	if CanInitiateContact(RoleOwner) || CanInitiateContact(RoleBroker) {
		t.Error("owners and brokers must not initiate")
	}
	if CanInitiateContact(Role("unknown")) {
		t.Error("unknown roles must not initiate")
	}
}
