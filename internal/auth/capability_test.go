package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleStudent, MarkOwnAttendance, true},
		{RoleStudent, MarkAnyAttendance, false},
		{RoleStudent, ManageSessions, false},
		{RoleStudent, DisplaySessionCode, false},
		{RoleLecturer, MarkAnyAttendance, true},
		{RoleLecturer, ManageSessions, true},
		{RoleLecturer, ManageEnrollments, false},
		{RoleAdmin, ManageEnrollments, true},
		{RoleAdmin, MarkOwnAttendance, false},
		{Role("guest"), UploadImages, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Can(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
	}
}
