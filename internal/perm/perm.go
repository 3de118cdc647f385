// Package perm holds the section-edit permission rules.
package perm

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}

// SectionContext is everything the edit decision depends on. Callers gather
// it fresh per request; nothing here is cached.
type SectionContext struct {
	MeetingLocked        bool
	IsSectionReporter    bool
	IsDepartmentReporter bool
}

// CanEditSection applies the rules in order: a locked meeting denies everyone,
// admins may edit anything unlocked, then reporter assignments grant access.
func CanEditSection(role Role, sc SectionContext) bool {
	if sc.MeetingLocked {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	if sc.IsSectionReporter {
		return true
	}
	return sc.IsDepartmentReporter
}
