package domain

import "testing"

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleGuest, PermView, true},
		{RoleGuest, PermPost, false},
		{RoleGuest, PermVote, false},
		{RoleGuest, PermModerate, false},
		{RoleUser, PermPost, true},
		{RoleUser, PermVote, true},
		{RoleUser, PermModerate, false},
		{RoleAdmin, PermModerate, true},
		{Role("root"), PermView, false},
	}
	for _, tc := range cases {
		if got := tc.role.Can(tc.perm); got != tc.want {
			t.Errorf("%s.Can(%s) = %v; want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !CanAnonymous(PermView) || CanAnonymous(PermPost) {
		t.Fatalf("anonymous callers may only view")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole(Admin) = %q, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
