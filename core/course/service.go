package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

const (
	defaultCredits     = 3
	defaultMaxStudents = 50
)

var (
	// errors
	ErrNotFound      = core.NewError(core.KindNotFound, "course not found")
	ErrCodeExists    = core.NewError(core.KindConflict, "a course with this code already exists")
	ErrNotInstructor = core.NewError(core.KindInvalidInput, "the course owner must be an instructor")
	ErrNotOwner      = core.NewError(core.KindForbidden, "only the course instructor or an admin can do this")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// UserGetter resolves the instructor of a course.
	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// Create stores a course owned by nc.InstructorID, which must be an instructor.
func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	instructor, err := svc.users.GetByID(ctx, nc.InstructorID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Course{}, ErrNotInstructor
		}
		return Course{}, err
	}
	if !instructor.IsInstructor() {
		return Course{}, ErrNotInstructor
	}

	now := NowFunc().UTC()
	c := Course{
		Code:         nc.Code,
		Name:         nc.Name,
		Description:  nc.Description,
		Category:     nc.Category,
		Credits:      defaultCredits,
		MaxStudents:  defaultMaxStudents,
		IsActive:     true,
		InstructorID: instructor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nc.Credits != nil {
		c.Credits = *nc.Credits
	}
	if nc.MaxStudents != nil {
		c.MaxStudents = *nc.MaxStudents
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) ListByInstructor(ctx context.Context, instructorID int64) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, &QueryFilter{InstructorID: instructorID}, nil)
}

// CheckManager returns ErrNotOwner unless usr is an admin or the course instructor.
func CheckManager(c Course, usr user.User) error {
	if usr.IsAdmin() || c.IsOwnedBy(usr.ID) {
		return nil
	}
	return ErrNotOwner
}

func (svc *Service) Update(ctx context.Context, c Course, uc UpdateCourse, by user.User) (Course, error) {
	if err := CheckManager(c, by); err != nil {
		return Course{}, err
	}
	if uc.Name != "" {
		c.Name = uc.Name
	}
	if uc.Description != "" {
		c.Description = uc.Description
	}
	if uc.Category != "" {
		c.Category = uc.Category
	}
	if uc.Credits != nil {
		c.Credits = *uc.Credits
	}
	if uc.MaxStudents != nil {
		c.MaxStudents = *uc.MaxStudents
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	c.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, c Course, by user.User) error {
	if err := CheckManager(c, by); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, c.ID)
}
