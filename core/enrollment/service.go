package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

const maxBulkSize = 100

var (
	// errors
	ErrNotFound         = core.NewError(core.KindNotFound, "enrollment not found")
	ErrAlreadyEnrolled  = core.NewError(core.KindConflict, "student already enrolled in this course")
	ErrCourseFull       = core.NewError(core.KindLimitExceeded, "course is full")
	ErrCourseInactive   = core.NewError(core.KindInvalidInput, "course is not active")
	ErrNotStudent       = core.NewError(core.KindInvalidInput, "only students can be enrolled")
	ErrInvalidProgress  = core.NewError(core.KindInvalidInput, "progress must be between 0 and 100")
	ErrInvalidGrade     = core.NewError(core.KindInvalidInput, "final grade must be between 0 and 100")
	ErrBulkTooLarge     = core.NewError(core.KindInvalidInput, fmt.Sprintf("cannot enroll more than %d students at once", maxBulkSize))
	ErrStudentNotFound  = core.NewError(core.KindNotFound, "student not found")
	errAlreadyProcessed = errors.New("already enrolled")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// LockCourse serialises enrollments into courseID for the rest of the transaction exec belongs to.
		LockCourse(ctx context.Context, courseID int64, exec ...core.DBExecutor) error
		// CountSeats counts the enrollments of a course that hold a seat (every status but DROPPED).
		CountSeats(ctx context.Context, courseID int64, exec ...core.DBExecutor) (int, error)
		// CreateEnrollment returns ErrAlreadyEnrolled on a duplicate (student, course).
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id int64, exec ...core.DBExecutor) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, courseID int64, exec ...core.DBExecutor) (Enrollment, error)
		QueryByStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]Enrollment, error)
		QueryByCourse(ctx context.Context, courseID int64, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
		GetByUSN(ctx context.Context, usn string) (user.User, error)
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		users   UserGetter
		courses CourseGetter
	}
)

func NewService(repo Repository, tx core.Transactor, users UserGetter, courses CourseGetter) *Service {
	return &Service{repo: repo, tx: tx, users: users, courses: courses}
}

// Enroll links a student to an active course with free seats.
func (svc *Service) Enroll(ctx context.Context, studentID, courseID int64) (Enrollment, error) {
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, ErrStudentNotFound
		}
		return Enrollment{}, err
	}
	if !student.IsStudent() {
		return Enrollment{}, ErrNotStudent
	}
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	return svc.enroll(ctx, student, crs)
}

func (svc *Service) enroll(ctx context.Context, student user.User, crs course.Course) (Enrollment, error) {
	if !crs.IsActive {
		return Enrollment{}, ErrCourseInactive
	}

	var enr Enrollment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.LockCourse(ctx, crs.ID, exec); err != nil {
			return err
		}
		if _, err := svc.repo.FindEnrollment(ctx, student.ID, crs.ID, exec); err == nil {
			return ErrAlreadyEnrolled
		} else if errors.Cause(err) != ErrNotFound {
			return err
		}

		seats, err := svc.repo.CountSeats(ctx, crs.ID, exec)
		if err != nil {
			return err
		}
		if seats >= crs.MaxStudents {
			return ErrCourseFull
		}

		enr, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			StudentID:  student.ID,
			CourseID:   crs.ID,
			Status:     StatusActive,
			EnrolledAt: NowFunc().UTC(),
		}, exec)
		return err
	})
	return enr, err
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) Find(ctx context.Context, studentID, courseID int64) (Enrollment, error) {
	return svc.repo.FindEnrollment(ctx, studentID, courseID)
}

func (svc *Service) Drop(ctx context.Context, id int64) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Status = StatusDropped
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// UpdateProgress sets the progress; reaching 100 completes the enrollment.
func (svc *Service) UpdateProgress(ctx context.Context, id int64, progress float64) (Enrollment, error) {
	if progress < 0 || progress > 100 {
		return Enrollment{}, ErrInvalidProgress
	}
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Progress = progress
	if progress >= 100 && enr.Status != StatusCompleted {
		enr.Status = StatusCompleted
		enr.CompletedAt = NowFunc().UTC()
	}
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *Service) SetFinalGrade(ctx context.Context, id int64, grade float64) (Enrollment, error) {
	if grade < 0 || grade > 100 {
		return Enrollment{}, ErrInvalidGrade
	}
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	enr.FinalGrade = &grade
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *Service) ListByStudent(ctx context.Context, studentID int64) ([]Enrollment, error) {
	return svc.repo.QueryByStudent(ctx, studentID)
}

func (svc *Service) ListByCourse(ctx context.Context, courseID int64) ([]Enrollment, error) {
	return svc.repo.QueryByCourse(ctx, courseID)
}

// CourseIDsOf returns the ids of the courses the student is enrolled in, dropped ones excluded.
func (svc *Service) CourseIDsOf(ctx context.Context, studentID int64) ([]int64, error) {
	enrs, err := svc.repo.QueryByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(enrs))
	for _, enr := range enrs {
		if enr.Status != StatusDropped {
			ids = append(ids, enr.CourseID)
		}
	}
	return ids, nil
}

// BulkEnroll enrolls a USN range into a course, collecting the outcome of every USN.
func (svc *Service) BulkEnroll(ctx context.Context, be BulkEnroll) (BulkResult, error) {
	crs, err := svc.courses.GetByID(ctx, be.CourseID)
	if err != nil {
		return BulkResult{}, err
	}

	res := BulkResult{Enrolled: make([]string, 0), AlreadyEnrolled: make([]string, 0), Failed: make([]BulkFailure, 0)}
	for i := be.Start; i <= be.End; i++ {
		usn := fmt.Sprintf("%s%03d", be.Prefix, i)
		err := svc.bulkEnrollOne(ctx, usn, crs)
		switch {
		case err == nil:
			res.Enrolled = append(res.Enrolled, usn)
		case errors.Cause(err) == errAlreadyProcessed:
			res.AlreadyEnrolled = append(res.AlreadyEnrolled, usn)
		default:
			res.Failed = append(res.Failed, BulkFailure{USN: usn, Reason: errors.Cause(err).Error()})
		}
	}
	return res, nil
}

func (svc *Service) bulkEnrollOne(ctx context.Context, usn string, crs course.Course) error {
	student, err := svc.users.GetByUSN(ctx, usn)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ErrStudentNotFound
		}
		return err
	}
	if !student.IsStudent() {
		return ErrNotStudent
	}
	if _, err = svc.enroll(ctx, student, crs); errors.Cause(err) == ErrAlreadyEnrolled {
		return errAlreadyProcessed
	}
	return err
}
