package ids

import "testing"

func TestNewIsUniqueAndSortable(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = struct{}{}
		if prev != "" && id <= prev {
			t.Fatalf("ids not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestRoleID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "role"},
		{"whitespace only", "   \t ", "role"},
		{"simple", "Admin Role", "role-admin-role"},
		{"special characters dropped", "Special@Role#123", "role-specialrole123"},
		{"hyphen runs collapse", "Admin -- Role", "role-admin-role"},
		{"mixed case", "Finance Admin ", "role-finance-admin"},
		{"bare prefix word", "Role", "role"},
		{"unicode stripped", "Über Admin", "role-ber-admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleID(tc.in); got != tc.want {
				t.Fatalf("RoleID(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRoleIDIdempotent(t *testing.T) {
	inputs := []string{
		"", "Admin Role", "Special@Role#123", "Admin -- Role",
		"Finance Admin ", "super admin", "role-admin", "Librarian",
	}
	for _, in := range inputs {
		once := RoleID(in)
		if twice := RoleID(once); twice != once {
			t.Fatalf("RoleID not idempotent: RoleID(%q)=%q but RoleID(%q)=%q", in, once, once, twice)
		}
	}
}
