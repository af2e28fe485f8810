package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotificationIsBroadcast(t *testing.T) {
	id := uint64(7)
	require.True(t, (&Notification{}).IsBroadcast())
	require.False(t, (&Notification{UserID: &id}).IsBroadcast())
}

func TestValidNotificationType(t *testing.T) {
	for _, typ := range []string{NotificationTypeSystem, NotificationTypeCourse, NotificationTypeGrade} {
		require.True(t, ValidNotificationType(typ), typ)
	}
	require.False(t, ValidNotificationType(""))
	require.False(t, ValidNotificationType("SYSTEM"))
}

func TestUserRoles(t *testing.T) {
	u := User{Roles: []Role{{Name: RoleStudent}, {Name: RoleTeacher}}}

	require.True(t, u.HasRole(RoleTeacher))
	require.False(t, u.HasRole(RoleAdmin))
	require.Equal(t, []string{RoleStudent, RoleTeacher}, u.RoleNames())
}
