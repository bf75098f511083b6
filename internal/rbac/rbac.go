package rbac

type Role string
type Action string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

const (
	ActionView      Action = "view"
	ActionProgress  Action = "progress"
	ActionEdit      Action = "edit"
	ActionCreate    Action = "create"
	ActionAssign    Action = "assign"
	ActionConfigure Action = "configure"
	ActionAdmin     Action = "admin"
)

// Can reports whether a role may perform an action. The hierarchy is
// strict: admin covers everything a teacher can do, a teacher covers
// everything a student can do.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleTeacher:
		return action != ActionAdmin
	case RoleStudent:
		return action == ActionView || action == ActionProgress
	default:
		return false
	}
}

// Normalize maps arbitrary role strings to a known role, defaulting to
// the least privileged one.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(role)
	default:
		return RoleStudent
	}
}
