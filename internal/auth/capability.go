package auth

// Role is the caller's role in the university.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Capability names an action on a resource.
type Capability string

const (
	MarkOwnAttendance  Capability = "attendance:mark_own"
	MarkAnyAttendance  Capability = "attendance:mark_any"
	ViewAttendance     Capability = "attendance:view"
	ManageSessions     Capability = "sessions:manage"
	DisplaySessionCode Capability = "sessions:display_code"
	ManageEnrollments  Capability = "enrollments:manage"
	UploadImages       Capability = "uploads:create"
)

var capabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		MarkAnyAttendance:  true,
		ViewAttendance:     true,
		ManageSessions:     true,
		DisplaySessionCode: true,
		ManageEnrollments:  true,
		UploadImages:       true,
	},
	RoleLecturer: {
		MarkAnyAttendance:  true,
		ViewAttendance:     true,
		ManageSessions:     true,
		DisplaySessionCode: true,
		UploadImages:       true,
	},
	RoleStudent: {
		MarkOwnAttendance: true,
		UploadImages:      true,
	},
}

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role Role, c Capability) bool {
	return capabilities[role][c]
}
