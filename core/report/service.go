package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/user"
)

var NowFunc = time.Now // mockable

type (
	// StatsRepository computes platform wide aggregates.
	StatsRepository interface {
		DashboardStats(ctx context.Context, exec ...core.DBExecutor) (DashboardStats, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
	}

	EnrollmentSource interface {
		Find(ctx context.Context, studentID, courseID int64) (enrollment.Enrollment, error)
		ListByCourse(ctx context.Context, courseID int64) ([]enrollment.Enrollment, error)
	}

	SubmissionSource interface {
		ListStudentCourseSubmissions(ctx context.Context, studentID, courseID int64) ([]assignment.Submission, error)
	}

	AttemptSource interface {
		ListStudentCourseAttempts(ctx context.Context, studentID, courseID int64) ([]quiz.Attempt, error)
	}

	AttendanceSource interface {
		ListByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]attendance.Attendance, error)
		ListByCourse(ctx context.Context, courseID int64) ([]attendance.Attendance, error)
	}

	Service struct {
		stats       StatsRepository
		users       UserGetter
		courses     CourseGetter
		enrollments EnrollmentSource
		submissions SubmissionSource
		attempts    AttemptSource
		attendance  AttendanceSource
		mailSvc     core.EmailService
	}
)

func NewService(
	stats StatsRepository,
	users UserGetter,
	courses CourseGetter,
	enrollments EnrollmentSource,
	submissions SubmissionSource,
	attempts AttemptSource,
	attendance AttendanceSource,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		stats:       stats,
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		submissions: submissions,
		attempts:    attempts,
		attendance:  attendance,
		mailSvc:     mailSvc,
	}
}

func toPerson(u user.User) Person {
	return Person{ID: u.ID, Name: u.Name, Username: u.Username, USN: u.USN}
}

// StudentGrades gathers everything a student did in a course.
func (svc *Service) StudentGrades(ctx context.Context, studentID, courseID int64) (GradeReport, error) {
	var rep GradeReport

	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return rep, err
	}
	rep.Course = crs

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		student, err := svc.users.GetByID(gctx, studentID)
		rep.Student = toPerson(student)
		return err
	})
	g.Go(func() error {
		instructor, err := svc.users.GetByID(gctx, crs.InstructorID)
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		rep.Instructor = toPerson(instructor)
		return err
	})
	g.Go(func() error {
		var err error
		rep.Enrollment, err = svc.enrollments.Find(gctx, studentID, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		rep.Submissions, err = svc.submissions.ListStudentCourseSubmissions(gctx, studentID, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		rep.QuizAttempts, err = svc.attempts.ListStudentCourseAttempts(gctx, studentID, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		rep.Attendance, err = svc.attendance.ListByStudentAndCourse(gctx, studentID, courseID)
		rep.AttendanceRate = attendance.Rate(rep.Attendance)
		return err
	})
	if err = g.Wait(); err != nil {
		return GradeReport{}, err
	}
	return rep, nil
}

// CourseAttendance summarises the attendance of every enrolled student of a course.
func (svc *Service) CourseAttendance(ctx context.Context, courseID int64) (AttendanceReport, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return AttendanceReport{}, err
	}
	enrs, err := svc.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return AttendanceReport{}, err
	}
	records, err := svc.attendance.ListByCourse(ctx, courseID)
	if err != nil {
		return AttendanceReport{}, err
	}

	byStudent := make(map[int64][]attendance.Attendance)
	for _, r := range records {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	rows := make([]AttendanceRow, len(enrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, enr := range enrs {
		i, enr := i, enr
		g.Go(func() error {
			student, err := svc.users.GetByID(gctx, enr.StudentID)
			if err != nil {
				return err
			}
			row := AttendanceRow{Student: toPerson(student)}
			for _, r := range byStudent[enr.StudentID] {
				switch r.Status {
				case attendance.StatusPresent:
					row.Present++
				case attendance.StatusAbsent:
					row.Absent++
				case attendance.StatusLate:
					row.Late++
				case attendance.StatusExcused:
					row.Excused++
				}
				row.Total++
			}
			row.Rate = attendance.Rate(byStudent[enr.StudentID])
			rows[i] = row
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return AttendanceReport{}, err
	}
	return AttendanceReport{Course: crs, Rows: rows}, nil
}

// CoursePerformance reports progress, grades, quiz average and attendance of every enrolled student.
func (svc *Service) CoursePerformance(ctx context.Context, courseID int64) (PerformanceReport, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return PerformanceReport{}, err
	}
	enrs, err := svc.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return PerformanceReport{}, err
	}

	rows := make([]PerformanceRow, len(enrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, enr := range enrs {
		i, enr := i, enr
		g.Go(func() error {
			student, err := svc.users.GetByID(gctx, enr.StudentID)
			if err != nil {
				return err
			}
			attempts, err := svc.attempts.ListStudentCourseAttempts(gctx, enr.StudentID, courseID)
			if err != nil {
				return err
			}
			records, err := svc.attendance.ListByStudentAndCourse(gctx, enr.StudentID, courseID)
			if err != nil {
				return err
			}
			rows[i] = PerformanceRow{
				Student:           toPerson(student),
				Status:            enr.Status,
				Progress:          enr.Progress,
				FinalGrade:        enr.FinalGrade,
				QuizAttempts:      len(attempts),
				AvgQuizPercentage: avgPercentage(attempts),
				AttendanceRate:    attendance.Rate(records),
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return PerformanceReport{}, err
	}
	return PerformanceReport{Course: crs, Rows: rows}, nil
}

// avgPercentage averages the percentage of graded attempts, rounded to 2 decimals.
func avgPercentage(attempts []quiz.Attempt) float64 {
	sum := decimal.Zero
	var n int64
	for _, a := range attempts {
		if a.Status != quiz.StatusGraded {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(a.Percentage))
		n++
	}
	if n == 0 {
		return 0
	}
	avg, _ := sum.DivRound(decimal.NewFromInt(n), 2).Float64()
	return avg
}

func (svc *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	return svc.stats.DashboardStats(ctx)
}
