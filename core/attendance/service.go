package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewError(core.KindNotFound, "attendance not found")
	ErrStudentNotFound = core.NewError(core.KindNotFound, "student not found")
	ErrAlreadyMarked   = core.NewError(core.KindConflict, "attendance already marked for this date") // returned by repositories on unique violations
	ErrInvalidStatus   = core.NewError(core.KindInvalidInput, "status must be one of: PRESENT, ABSENT, LATE, EXCUSED")
	ErrInvalidDate     = core.NewError(core.KindInvalidInput, "date must be formatted as YYYY-MM-DD")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateAttendance returns ErrAlreadyMarked on a duplicate (student, course, date).
		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		// QueryAttendance returns records by date, most recent first.
		QueryAttendance(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Attendance, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
	}

	Service struct {
		repo    Repository
		users   UserGetter
		courses CourseGetter
	}
)

func NewService(repo Repository, users UserGetter, courses CourseGetter) *Service {
	return &Service{repo: repo, users: users, courses: courses}
}

// Mark records the attendance of a student to a course on a date, once.
func (svc *Service) Mark(ctx context.Context, m Mark, by user.User) (Attendance, error) {
	if !m.Status.IsValid() {
		return Attendance{}, ErrInvalidStatus
	}
	now := NowFunc().UTC()
	date := Day(now)
	if m.Date != "" {
		d, err := time.Parse(DateLayout, m.Date)
		if err != nil {
			return Attendance{}, ErrInvalidDate
		}
		date = d
	}

	student, err := svc.users.GetByID(ctx, m.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Attendance{}, ErrStudentNotFound
		}
		return Attendance{}, err
	}
	crs, err := svc.courses.GetByID(ctx, m.CourseID)
	if err != nil {
		return Attendance{}, err
	}

	var markedBy *int64
	if by.ID != 0 {
		id := by.ID
		markedBy = &id
	}
	return svc.repo.CreateAttendance(ctx, Attendance{
		StudentID: student.ID,
		CourseID:  crs.ID,
		Date:      date,
		Status:    m.Status,
		Remarks:   m.Remarks,
		MarkedAt:  now,
		MarkedBy:  markedBy,
	})
}

func (svc *Service) ListByStudent(ctx context.Context, studentID int64) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, Filter{StudentID: studentID})
}

func (svc *Service) ListByCourse(ctx context.Context, courseID int64) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, Filter{CourseID: courseID})
}

func (svc *Service) ListByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, Filter{StudentID: studentID, CourseID: courseID})
}

func (svc *Service) ListByCourseAndDate(ctx context.Context, courseID int64, date time.Time) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, Filter{CourseID: courseID, Date: Day(date)})
}

// Rate returns the share of PRESENT records of a student in a course, in percent rounded to 2 decimals.
// It is 0 when nothing was recorded.
func (svc *Service) Rate(ctx context.Context, studentID, courseID int64) (float64, error) {
	records, err := svc.ListByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return 0, err
	}
	return Rate(records), nil
}

// Rate computes the attendance rate of records.
func Rate(records []Attendance) float64 {
	if len(records) == 0 {
		return 0
	}
	var present int64
	for _, r := range records {
		if r.Status == StatusPresent {
			present++
		}
	}
	rate, _ := decimal.NewFromInt(present*100).DivRound(decimal.NewFromInt(int64(len(records))), 2).Float64()
	return rate
}
