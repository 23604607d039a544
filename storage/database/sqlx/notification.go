package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/notification"
)

const (
	notificationColumns = "id, user_id, title, message, type, is_read, link_url, created_at"
	activityColumns     = "id, activity_type, description, user_id, entity_type, entity_id, created_at"
)

type notificationRow struct {
	ID        int64       `db:"id"`
	UserID    int64       `db:"user_id"`
	Title     string      `db:"title"`
	Message   string      `db:"message"`
	Type      string      `db:"type"`
	IsRead    bool        `db:"is_read"`
	LinkURL   null.String `db:"link_url"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Message:   r.Message,
		Type:      notification.Type(r.Type),
		IsRead:    r.IsRead,
		LinkURL:   r.LinkURL.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type activityRow struct {
	ID          int64       `db:"id"`
	Type        string      `db:"activity_type"`
	Description string      `db:"description"`
	UserID      null.Int64  `db:"user_id"`
	EntityType  null.String `db:"entity_type"`
	EntityID    null.Int64  `db:"entity_id"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r activityRow) toActivity() notification.Activity {
	return notification.Activity{
		ID:          r.ID,
		Type:        r.Type,
		Description: r.Description,
		UserID:      r.UserID.Ptr(),
		EntityType:  r.EntityType.String,
		EntityID:    r.EntityID.Ptr(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{repository{db: db}}
}

func (repo *notificationRepository) CreateNotification(
	ctx context.Context,
	n notification.Notification,
	svcExec ...core.DBExecutor,
) (notification.Notification, error) {
	q := `INSERT INTO notifications (user_id, title, message, type, is_read, link_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &n.ID, q,
		n.UserID, n.Title, n.Message, string(n.Type), n.IsRead, optString(n.LinkURL), n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotification(
	ctx context.Context,
	id int64,
	svcExec ...core.DBExecutor,
) (notification.Notification, error) {
	var row notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, q, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "selecting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	svcExec ...core.DBExecutor,
) ([]notification.Notification, error) {
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1"
	if unreadOnly {
		q += " AND NOT is_read"
	}
	q += " ORDER BY created_at DESC, id DESC"

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, repo.getExec(svcExec), &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, len(rows))
	for i, r := range rows {
		notifs[i] = r.toNotification()
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(
	ctx context.Context,
	n notification.Notification,
	svcExec ...core.DBExecutor,
) (notification.Notification, error) {
	q := "UPDATE notifications SET title = $1, message = $2, type = $3, is_read = $4, link_url = $5 WHERE id = $6"
	res, err := repo.getExec(svcExec).ExecContext(ctx, q, n.Title, n.Message, string(n.Type), n.IsRead, optString(n.LinkURL), n.ID)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID int64, svcExec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read", userID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting read notifications")
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id int64, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "DELETE FROM notifications WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) CreateActivity(
	ctx context.Context,
	a notification.Activity,
	svcExec ...core.DBExecutor,
) (notification.Activity, error) {
	q := `INSERT INTO activities (activity_type, description, user_id, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &a.ID, q,
		a.Type, a.Description, null.Int64FromPtr(a.UserID), optString(a.EntityType), null.Int64FromPtr(a.EntityID), a.CreatedAt,
	)
	if err != nil {
		return notification.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return a, nil
}

func (repo *notificationRepository) QueryActivities(
	ctx context.Context,
	filter notification.ActivityFilter,
	svcExec ...core.DBExecutor,
) ([]notification.Activity, error) {
	w := &where{}
	if filter.Type != "" {
		w.add("activity_type = ?", filter.Type)
	}
	if filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	q := "SELECT " + activityColumns + " FROM activities" + w.String() + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		w.args = append(w.args, filter.Limit)
	}

	exec := repo.getExec(svcExec)
	var rows []activityRow
	if err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting activities")
	}
	activities := make([]notification.Activity, len(rows))
	for i, r := range rows {
		activities[i] = r.toActivity()
	}
	return activities, nil
}
