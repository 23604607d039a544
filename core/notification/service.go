package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

const recentActivities = 20

var (
	// errors
	ErrNotFound     = core.NewError(core.KindNotFound, "notification not found")
	ErrNotRecipient = core.NewError(core.KindForbidden, "notification belongs to another user")
	ErrInvalidType  = core.NewError(core.KindInvalidInput, "invalid notification type")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		GetNotification(ctx context.Context, id int64, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns the notifications of a user, most recent first.
		QueryNotifications(ctx context.Context, userID int64, unreadOnly bool, exec ...core.DBExecutor) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		MarkAllRead(ctx context.Context, userID int64, exec ...core.DBExecutor) (int, error)
		DeleteNotification(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		QueryActivities(ctx context.Context, filter ActivityFilter, exec ...core.DBExecutor) ([]Activity, error)
	}

	// Publisher pushes notifications to the recipient's live connections.
	Publisher interface {
		Publish(userID int64, n Notification)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	Service struct {
		repo      Repository
		users     UserGetter
		mailSvc   core.EmailService
		publisher Publisher
		logger    core.Logger
	}
)

func NewService(repo Repository, users UserGetter, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) SetPublisher(p Publisher) { svc.publisher = p }

// Notify stores a notification for its recipient, pushes it to their live connections
// and, when asked to, mails it.
func (svc *Service) Notify(ctx context.Context, nn NewNotification) (Notification, error) {
	if !nn.Type.IsValid() {
		return Notification{}, ErrInvalidType
	}
	usr, err := svc.users.GetByID(ctx, nn.UserID)
	if err != nil {
		return Notification{}, err
	}

	n, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:    usr.ID,
		Title:     core.CleanString(nn.Title),
		Message:   core.CleanString(nn.Message),
		Type:      nn.Type,
		LinkURL:   core.CleanString(nn.LinkURL),
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if svc.publisher != nil {
		svc.publisher.Publish(usr.ID, n)
	}
	if nn.Email && svc.mailSvc != nil && usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: struct {
				Name    string
				Title   string
				Message string
				LinkURL string
			}{Name: usr.Name, Title: n.Title, Message: n.Message, LinkURL: n.LinkURL},
		})
	}
	return n, nil
}

func (svc *Service) List(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, unreadOnly)
}

func (svc *Service) getOwned(ctx context.Context, id, userID int64) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotRecipient
	}
	return n, nil
}

func (svc *Service) MarkRead(ctx context.Context, id, userID int64) (Notification, error) {
	n, err := svc.getOwned(ctx, id, userID)
	if err != nil {
		return Notification{}, err
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	return svc.repo.MarkAllRead(ctx, userID)
}

func (svc *Service) Delete(ctx context.Context, id, userID int64) error {
	if _, err := svc.getOwned(ctx, id, userID); err != nil {
		return err
	}
	return svc.repo.DeleteNotification(ctx, id)
}

// LogActivity stores an audit record. Failures are logged, never returned.
func (svc *Service) LogActivity(ctx context.Context, typ, description string, userID int64, entityType string, entityID int64) {
	act := Activity{
		Type:        typ,
		Description: description,
		EntityType:  entityType,
		CreatedAt:   NowFunc().UTC(),
	}
	if userID != 0 {
		act.UserID = &userID
	}
	if entityID != 0 {
		act.EntityID = &entityID
	}
	if _, err := svc.repo.CreateActivity(ctx, act); err != nil {
		svc.logger.Error(fmt.Sprintf("logging activity %s: %v", typ, err), err)
	}
}

func (svc *Service) RecentActivities(ctx context.Context) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, ActivityFilter{Limit: recentActivities})
}

func (svc *Service) ActivitiesByType(ctx context.Context, typ string) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, ActivityFilter{Type: typ})
}

func (svc *Service) ActivitiesByUser(ctx context.Context, userID int64) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, ActivityFilter{UserID: userID})
}
