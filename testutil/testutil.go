// Package testutil wires the services on the in-memory store for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/material"
	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/report"
	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/services/email"
	"github.com/trezcool/edunex/services/logger"
	"github.com/trezcool/edunex/storage/database/inmem"
)

const Password = "Sup3r$ecret!"

// Env is a fully wired application backed by a fresh in-memory store.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Tx         core.Transactor
	Mail       *emailsvc.MockService
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserRepo user.Repository
	QuizRepo quiz.Repository

	Users         *user.Service
	Courses       *course.Service
	Enrollments   *enrollment.Service
	Quizzes       *quiz.Service
	Assignments   *assignment.Service
	Attendance    *attendance.Service
	Materials     *material.Service
	Notifications *notification.Service
	Reports       *report.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)
	validate, translator := NewValidator()

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	mail := emailsvc.NewMockService()

	env := &Env{
		Conf:       conf,
		DB:         db,
		Tx:         tx,
		Mail:       mail,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserRepo:   inmemdb.NewUserRepository(db),
		QuizRepo:   inmemdb.NewQuizRepository(db),
	}

	env.Users = user.NewService(env.UserRepo, mail, conf, validate)
	env.Courses = course.NewService(inmemdb.NewCourseRepository(db), env.Users)
	env.Enrollments = enrollment.NewService(inmemdb.NewEnrollmentRepository(db), tx, env.Users, env.Courses)
	env.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db), env.Users, mail, logger)
	env.Quizzes = quiz.NewService(env.QuizRepo, tx, env.Courses, env.Users, env.Enrollments, logger)
	env.Quizzes.AddObservers(notification.NewQuizObserver(env.Notifications))
	env.Assignments = assignment.NewService(inmemdb.NewAssignmentRepository(db), tx, env.Courses, env.Enrollments)
	env.Attendance = attendance.NewService(inmemdb.NewAttendanceRepository(db), env.Users, env.Courses)
	env.Materials = material.NewService(inmemdb.NewMaterialRepository(db), env.Courses, env.Notifications)
	env.Reports = report.NewService(
		inmemdb.NewStatsRepository(db),
		env.Users,
		env.Courses,
		env.Enrollments,
		env.Assignments,
		env.Quizzes,
		env.Attendance,
		mail,
	)
	return env
}

// CreateUser stores a user straight through the repository, skipping validation and emails.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateStudent(t *testing.T, uname, usn string) user.User {
	t.Helper()
	usr := CreateUser(t, env.UserRepo, "Student "+uname, uname, uname+"@student.edu", "", user.RoleStudent, true)
	if usn != "" {
		usr.USN = usn
		var err error
		if usr, err = env.UserRepo.UpdateUser(context.Background(), usr); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	return usr
}

func (env *Env) CreateInstructor(t *testing.T, uname string) user.User {
	t.Helper()
	return CreateUser(t, env.UserRepo, "Instructor "+uname, uname, uname+"@edunex.edu", "", user.RoleInstructor, true)
}

func (env *Env) CreateAdmin(t *testing.T, uname string) user.User {
	t.Helper()
	return CreateUser(t, env.UserRepo, "Admin "+uname, uname, uname+"@edunex.edu", Password, user.RoleAdmin, true)
}

func (env *Env) CreateCourse(t *testing.T, code string, instructor user.User, maxStudents int) course.Course {
	t.Helper()
	crs, err := env.Courses.Create(context.Background(), course.NewCourse{
		Code:         code,
		Name:         "Course " + code,
		InstructorID: instructor.ID,
		MaxStudents:  &maxStudents,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func (env *Env) Enroll(t *testing.T, student user.User, crs course.Course) enrollment.Enrollment {
	t.Helper()
	enr, err := env.Enrollments.Enroll(context.Background(), student.ID, crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func IntPtr(i int) *int { return &i }

func BoolPtr(b bool) *bool { return &b }

func TimePtr(t time.Time) *time.Time { return &t }

// CreateQuiz creates an active quiz allowing maxAttempts attempts, with no time window.
func (env *Env) CreateQuiz(t *testing.T, crs course.Course, title string, maxAttempts int) quiz.Quiz {
	t.Helper()
	q, err := env.Quizzes.CreateQuiz(context.Background(), quiz.NewQuiz{
		Title:       title,
		MaxAttempts: &maxAttempts,
	}, crs.ID)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}

func (env *Env) AddQuestion(t *testing.T, q quiz.Quiz, nq quiz.NewQuestion) quiz.Question {
	t.Helper()
	question, err := env.Quizzes.AddQuestion(context.Background(), nq, q.ID)
	if err != nil {
		t.Fatalf("AddQuestion() failed: %v", err)
	}
	return question
}
