package perm

import "testing"

func TestCanEditSection(t *testing.T) {
	cases := []struct {
		name string
		role Role
		sc   SectionContext
		want bool
	}{
		{"locked denies admin", RoleAdmin, SectionContext{MeetingLocked: true}, false},
		{"locked denies section reporter", RoleMember, SectionContext{MeetingLocked: true, IsSectionReporter: true}, false},
		{"locked denies department reporter", RoleMember, SectionContext{MeetingLocked: true, IsDepartmentReporter: true}, false},
		{"admin edits anything unlocked", RoleAdmin, SectionContext{}, true},
		{"section reporter edits own section", RoleMember, SectionContext{IsSectionReporter: true}, true},
		{"department reporter edits department section", RoleMember, SectionContext{IsDepartmentReporter: true}, true},
		{"plain member denied", RoleMember, SectionContext{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanEditSection(tc.role, tc.sc); got != tc.want {
				t.Fatalf("CanEditSection(%v, %+v) = %v, want %v", tc.role, tc.sc, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("admin should normalize to RoleAdmin")
	}
	if Normalize("owner") != RoleMember {
		t.Fatal("unknown roles should normalize to RoleMember")
	}
	if Normalize("") != RoleMember {
		t.Fatal("empty role should normalize to RoleMember")
	}
}
