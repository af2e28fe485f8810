package notifications

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database/testutil"
	"github.com/charlesng35/campus/internal/models"
)

type call struct {
	kind        string // "user" or "broadcast"
	username    string
	destination string
	payload     any
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   []call
	online  map[string]bool
	failErr error
}

func newFakeTransport(online ...string) *fakeTransport {
	t := &fakeTransport{online: map[string]bool{}}
	for _, name := range online {
		t.online[name] = true
	}
	return t
}

func (f *fakeTransport) SendToUser(username, destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "user", username: username, destination: destination, payload: payload})
	if f.failErr != nil {
		return f.failErr
	}
	if !f.online[username] {
		return errOffline
	}
	return nil
}

func (f *fakeTransport) Broadcast(destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "broadcast", destination: destination, payload: payload})
	return f.failErr
}

func (f *fakeTransport) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeedData())
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{Username: username, Password: "x", Status: models.UserStatusActive}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedNotification(t *testing.T, db *gorm.DB, userID *uint64, title string) models.Notification {
	t.Helper()
	row := models.Notification{UserID: userID, Type: models.NotificationTypeCourse, Title: title, Content: title + " body"}
	require.NoError(t, db.Create(&row).Error)
	return row
}
