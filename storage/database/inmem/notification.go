package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(
	ctx context.Context,
	n notification.Notification,
	_ ...core.DBExecutor,
) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.ID = repo.db.nextID("notifications")
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) GetNotification(
	ctx context.Context,
	id int64,
	_ ...core.DBExecutor,
) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	_ ...core.DBExecutor,
) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !(unreadOnly && n.IsRead) {
			notifs = append(notifs, n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool {
		if !notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
		}
		return notifs[i].ID > notifs[j].ID
	})
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(
	ctx context.Context,
	n notification.Notification,
	_ ...core.DBExecutor,
) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notifications[n.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var marked int
	for id, n := range repo.db.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			repo.db.notifications[id] = n
			marked++
		}
	}
	return marked, nil
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notifications[id]; !ok {
		return notification.ErrNotFound
	}
	delete(repo.db.notifications, id)
	return nil
}

func (repo *notificationRepository) CreateActivity(
	ctx context.Context,
	a notification.Activity,
	_ ...core.DBExecutor,
) (notification.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextID("activities")
	repo.db.activities[a.ID] = a
	return a, nil
}

func (repo *notificationRepository) QueryActivities(
	ctx context.Context,
	filter notification.ActivityFilter,
	_ ...core.DBExecutor,
) ([]notification.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	activities := make([]notification.Activity, 0)
	for _, a := range repo.db.activities {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.UserID != 0 && (a.UserID == nil || *a.UserID != filter.UserID) {
			continue
		}
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		if !activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].CreatedAt.After(activities[j].CreatedAt)
		}
		return activities[i].ID > activities[j].ID
	})
	if filter.Limit > 0 && len(activities) > filter.Limit {
		activities = activities[:filter.Limit]
	}
	return activities, nil
}
