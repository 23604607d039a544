package notification_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent map[int64][]notification.Notification
}

func (p *recordingPublisher) Publish(userID int64, n notification.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[int64][]notification.Notification)
	}
	p.sent[userID] = append(p.sent[userID], n)
}

func TestService_Notify(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.CreateStudent(t, "alice", "")
	pub := &recordingPublisher{}
	env.Notifications.SetPublisher(pub)

	_, err := env.Notifications.Notify(ctx, notification.NewNotification{UserID: alice.ID, Title: "x", Message: "y", Type: "SPAM"})
	assert.Equal(t, notification.ErrInvalidType, err)

	n, err := env.Notifications.Notify(ctx, notification.NewNotification{
		UserID:  alice.ID,
		Title:   " Welcome ",
		Message: "Classes start Monday",
		Type:    notification.TypeAnnouncement,
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome", n.Title)
	assert.False(t, n.IsRead)
	assert.Empty(t, env.Mail.Messages())
	assert.Equal(t, []notification.Notification{n}, pub.sent[alice.ID])

	_, err = env.Notifications.Notify(ctx, notification.NewNotification{
		UserID: alice.ID, Title: "Grade", Message: "A+", Type: notification.TypeGrade, Email: true,
	})
	require.NoError(t, err)
	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "notification", msgs[0].TemplateName)
	assert.Equal(t, "Grade", msgs[0].Subject)
}

func TestService_readAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.CreateStudent(t, "alice", "")
	bob := env.CreateStudent(t, "bob", "")

	notify := func(title string) notification.Notification {
		n, err := env.Notifications.Notify(ctx, notification.NewNotification{
			UserID: alice.ID, Title: title, Message: title, Type: notification.TypeSystem,
		})
		require.NoError(t, err)
		return n
	}
	first, second, third := notify("one"), notify("two"), notify("three")

	_, err := env.Notifications.MarkRead(ctx, first.ID, bob.ID)
	assert.Equal(t, notification.ErrNotRecipient, err)
	assert.Equal(t, notification.ErrNotRecipient, env.Notifications.Delete(ctx, first.ID, bob.ID))
	_, err = env.Notifications.MarkRead(ctx, 9999, alice.ID)
	assert.Equal(t, notification.ErrNotFound, err)

	read, err := env.Notifications.MarkRead(ctx, first.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	unread, err := env.Notifications.List(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, env.Notifications.Delete(ctx, second.ID, alice.ID))

	n, err := env.Notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := env.Notifications.List(ctx, alice.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, n := range all {
		assert.True(t, n.IsRead)
	}
	assert.ElementsMatch(t, []int64{first.ID, third.ID}, []int64{all[0].ID, all[1].ID})
}

func TestService_activities(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.CreateStudent(t, "alice", "")

	env.Notifications.LogActivity(ctx, "LOGIN", "alice logged in", alice.ID, "", 0)
	env.Notifications.LogActivity(ctx, "COURSE_CREATED", "course created", 0, "course", 7)

	recent, err := env.Notifications.RecentActivities(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	byType, err := env.Notifications.ActivitiesByType(ctx, "COURSE_CREATED")
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Nil(t, byType[0].UserID)
	require.NotNil(t, byType[0].EntityID)
	assert.EqualValues(t, 7, *byType[0].EntityID)

	byUser, err := env.Notifications.ActivitiesByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "LOGIN", byUser[0].Type)
}
