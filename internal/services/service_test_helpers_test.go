package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database/testutil"
	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/pkg/crypto"
)

// eventRecorder captures NotificationCreated events raised on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.NotificationCreated
}

func newRecordingBus(t *testing.T) (*events.Bus, *eventRecorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &eventRecorder{}
	require.NoError(t, bus.Subscribe(events.TypeNotificationCreated, func(_ context.Context, e events.Event) error {
		rec.mu.Lock()
		rec.events = append(rec.events, e.(events.NotificationCreated))
		rec.mu.Unlock()
		return nil
	}))
	return bus, rec
}

func (r *eventRecorder) all() []events.NotificationCreated {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.NotificationCreated(nil), r.events...)
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeedData())
}

func mustCreateUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	hashed, err := crypto.HashPasswordCost("password-"+username, crypto.MinPasswordCost)
	require.NoError(t, err)

	user := models.User{Username: username, Password: hashed, Status: models.UserStatusActive}
	if role != "" {
		var r models.Role
		require.NoError(t, db.Where("name = ?", role).Take(&r).Error)
		user.Roles = []models.Role{r}
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func mustCreateCourse(t *testing.T, db *gorm.DB, code string, capacity int) models.Course {
	t.Helper()
	course := models.Course{Code: code, Name: "Course " + code, Credits: 3, Semester: "2024-fall", Capacity: capacity}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
