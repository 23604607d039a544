package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

const defaultMaxMarks = 100

var (
	// errors
	ErrNotFound           = core.NewError(core.KindNotFound, "assignment not found")
	ErrSubmissionNotFound = core.NewError(core.KindNotFound, "submission not found")
	ErrAlreadyGraded      = core.NewError(core.KindConflict, "submission was already graded")
	ErrSubmissionExists   = core.NewError(core.KindConflict, "submission already exists") // returned by repositories on unique violations
	ErrNotEnrolled        = core.NewError(core.KindForbidden, "student is not enrolled in this course")
	ErrInvalidMarks       = core.NewError(core.KindInvalidInput, "marks must be between 0 and the assignment max marks")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
		// QueryAssignments returns the assignments of the given courses by due date; no course ids means all.
		QueryAssignments(ctx context.Context, courseIDs []int64, exec ...core.DBExecutor) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) error

		// CreateSubmission returns ErrSubmissionExists on a duplicate (assignment, student).
		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id int64, exec ...core.DBExecutor) (Submission, error)
		FindSubmission(ctx context.Context, assignmentID, studentID int64, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter, exec ...core.DBExecutor) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
		ListByInstructor(ctx context.Context, instructorID int64) ([]course.Course, error)
	}

	EnrollmentLister interface {
		CourseIDsOf(ctx context.Context, studentID int64) ([]int64, error)
	}

	Service struct {
		repo        Repository
		tx          core.Transactor
		courses     CourseGetter
		enrollments EnrollmentLister
	}
)

func NewService(repo Repository, tx core.Transactor, courses CourseGetter, enrollments EnrollmentLister) *Service {
	return &Service{repo: repo, tx: tx, courses: courses, enrollments: enrollments}
}

func (svc *Service) Create(ctx context.Context, na NewAssignment, courseID int64) (Assignment, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return Assignment{}, err
	}
	maxMarks := defaultMaxMarks
	if na.MaxMarks != nil {
		maxMarks = *na.MaxMarks
	}
	now := NowFunc().UTC()
	return svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:      crs.ID,
		Title:         na.Title,
		Description:   na.Description,
		DueDate:       na.DueDate.UTC(),
		MaxMarks:      maxMarks,
		AttachmentURL: na.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) Update(ctx context.Context, a Assignment, ua UpdateAssignment) (Assignment, error) {
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Description != "" {
		a.Description = ua.Description
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	if ua.MaxMarks != nil {
		a.MaxMarks = *ua.MaxMarks
	}
	if ua.AttachmentURL != "" {
		a.AttachmentURL = ua.AttachmentURL
	}
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *Service) ListByCourse(ctx context.Context, courseID int64) ([]Assignment, error) {
	if _, err := svc.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, []int64{courseID})
}

// ListForUser returns the assignments a user deals with:
// students see their enrolled courses, instructors their own courses and admins everything.
func (svc *Service) ListForUser(ctx context.Context, usr user.User) ([]Assignment, error) {
	var courseIDs []int64
	switch usr.Role {
	case user.RoleAdmin:
		return svc.repo.QueryAssignments(ctx, nil)
	case user.RoleInstructor:
		courses, err := svc.courses.ListByInstructor(ctx, usr.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range courses {
			courseIDs = append(courseIDs, c.ID)
		}
	default:
		ids, err := svc.enrollments.CourseIDsOf(ctx, usr.ID)
		if err != nil {
			return nil, err
		}
		courseIDs = ids
	}
	if len(courseIDs) == 0 {
		return make([]Assignment, 0), nil
	}
	return svc.repo.QueryAssignments(ctx, courseIDs)
}

// Submit records a student's work. Submitting again replaces the previous submission until it is graded.
// Work handed in after the due date is flagged LATE_SUBMISSION.
func (svc *Service) Submit(ctx context.Context, assignmentID, studentID int64, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	courseIDs, err := svc.enrollments.CourseIDsOf(ctx, studentID)
	if err != nil {
		return Submission{}, err
	}
	if !core.Int64sContain(courseIDs, a.CourseID) {
		return Submission{}, ErrNotEnrolled
	}

	now := NowFunc().UTC()
	status := StatusSubmitted
	if now.After(a.DueDate) {
		status = StatusLate
	}

	var sub Submission
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		prev, err := svc.repo.FindSubmission(ctx, a.ID, studentID, exec)
		switch {
		case err == nil:
			if prev.Status == StatusGraded {
				return ErrAlreadyGraded
			}
			prev.SubmissionURL = ns.SubmissionURL
			prev.Content = ns.Content
			prev.Status = status
			prev.SubmittedAt = now
			sub, err = svc.repo.UpdateSubmission(ctx, prev, exec)
			return err
		case errors.Cause(err) == ErrSubmissionNotFound:
			sub, err = svc.repo.CreateSubmission(ctx, Submission{
				AssignmentID:  a.ID,
				StudentID:     studentID,
				SubmissionURL: ns.SubmissionURL,
				Content:       ns.Content,
				Status:        status,
				SubmittedAt:   now,
			}, exec)
			return err
		default:
			return err
		}
	})
	return sub, err
}

func (svc *Service) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// Grade scores a submission out of its assignment max marks.
func (svc *Service) Grade(ctx context.Context, submissionID int64, gs GradeSubmission) (Submission, error) {
	var sub Submission
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sub, err = svc.repo.GetSubmission(ctx, submissionID, exec); err != nil {
			return err
		}
		a, err := svc.repo.GetAssignment(ctx, sub.AssignmentID, exec)
		if err != nil {
			return err
		}
		if gs.Marks < 0 || gs.Marks > a.MaxMarks {
			return ErrInvalidMarks
		}

		now := NowFunc().UTC()
		marks := gs.Marks
		sub.MarksObtained = &marks
		sub.Feedback = core.CleanString(gs.Feedback)
		sub.Status = StatusGraded
		sub.GradedAt = &now
		sub, err = svc.repo.UpdateSubmission(ctx, sub, exec)
		return err
	})
	return sub, err
}

func (svc *Service) ListSubmissions(ctx context.Context, assignmentID int64) ([]Submission, error) {
	if _, err := svc.repo.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentID: assignmentID})
}

// ListPending returns the ungraded submissions of a course.
func (svc *Service) ListPending(ctx context.Context, courseID int64) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{
		CourseID: courseID,
		Statuses: []SubmissionStatus{StatusSubmitted, StatusLate},
	})
}

func (svc *Service) ListStudentSubmissions(ctx context.Context, studentID int64) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID})
}

func (svc *Service) ListStudentCourseSubmissions(ctx context.Context, studentID, courseID int64) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID, CourseID: courseID})
}
