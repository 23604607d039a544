package material

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

const (
	ActivityUploaded = "MATERIAL_UPLOADED"
	ActivityDeleted  = "MATERIAL_DELETED"

	activityEntity = "course_material"
)

var (
	// errors
	ErrNotFound = core.NewError(core.KindNotFound, "material not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateMaterial(ctx context.Context, m Material, exec ...core.DBExecutor) (Material, error)
		GetMaterial(ctx context.Context, id int64, exec ...core.DBExecutor) (Material, error)
		QueryMaterials(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Material, error)
		UpdateMaterial(ctx context.Context, m Material, exec ...core.DBExecutor) (Material, error)
		DeleteMaterial(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
	}

	ActivityLogger interface {
		LogActivity(ctx context.Context, typ, description string, userID int64, entityType string, entityID int64)
	}

	Service struct {
		repo       Repository
		courses    CourseGetter
		activities ActivityLogger
	}
)

func NewService(repo Repository, courses CourseGetter, activities ActivityLogger) *Service {
	return &Service{repo: repo, courses: courses, activities: activities}
}

// Create attaches a material to a course on behalf of its uploader.
func (svc *Service) Create(ctx context.Context, nm NewMaterial, courseID int64, by user.User) (Material, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return Material{}, err
	}
	uploader := by.ID
	m, err := svc.repo.CreateMaterial(ctx, Material{
		CourseID:    crs.ID,
		Title:       nm.Title,
		Description: nm.Description,
		Type:        nm.Type,
		URL:         nm.URL,
		UploadedBy:  &uploader,
		UploadedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return Material{}, err
	}

	svc.activities.LogActivity(
		ctx, ActivityUploaded,
		fmt.Sprintf("uploaded material %q for course %q", m.Title, crs.Name),
		by.ID, activityEntity, m.ID,
	)
	return m, nil
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

func (svc *Service) ListByCourse(ctx context.Context, courseID int64) ([]Material, error) {
	if _, err := svc.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMaterials(ctx, Filter{CourseID: courseID})
}

func (svc *Service) ListByUploader(ctx context.Context, userID int64) ([]Material, error) {
	return svc.repo.QueryMaterials(ctx, Filter{UploadedBy: userID})
}

// Update replaces the content of a material. Its course and uploader never change.
func (svc *Service) Update(ctx context.Context, m Material, nm NewMaterial) (Material, error) {
	m.Title = nm.Title
	m.Description = nm.Description
	m.Type = nm.Type
	m.URL = nm.URL
	return svc.repo.UpdateMaterial(ctx, m)
}

// Delete removes a material. The activity is logged against its uploader, or against by when the uploader is gone.
func (svc *Service) Delete(ctx context.Context, m Material, by user.User) error {
	if err := svc.repo.DeleteMaterial(ctx, m.ID); err != nil {
		return err
	}
	actor := by.ID
	if m.UploadedBy != nil {
		actor = *m.UploadedBy
	}
	svc.activities.LogActivity(ctx, ActivityDeleted, fmt.Sprintf("deleted material %q", m.Title), actor, activityEntity, m.ID)
	return nil
}
