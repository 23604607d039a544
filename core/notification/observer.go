package notification

import (
	"context"
	"fmt"

	"github.com/trezcool/edunex/core/quiz"
)

const (
	ActivityQuizStarted = "QUIZ_STARTED"
	ActivityQuizGraded  = "QUIZ_GRADED"
)

// QuizObserver records quiz activity and tells students about their grades.
type QuizObserver struct {
	svc *Service
}

func NewQuizObserver(svc *Service) *QuizObserver {
	return &QuizObserver{svc: svc}
}

func (obs *QuizObserver) AttemptStarted(ctx context.Context, q quiz.Quiz, a quiz.Attempt) error {
	obs.svc.LogActivity(
		ctx, ActivityQuizStarted,
		fmt.Sprintf("attempt #%d started on %q", a.AttemptNumber, q.Title),
		a.StudentID, "quiz_attempt", a.ID,
	)
	return nil
}

func (obs *QuizObserver) AttemptGraded(ctx context.Context, q quiz.Quiz, a quiz.Attempt) error {
	obs.svc.LogActivity(
		ctx, ActivityQuizGraded,
		fmt.Sprintf("attempt #%d on %q graded: %d/%d", a.AttemptNumber, q.Title, a.MarksObtained, a.TotalMarks),
		a.StudentID, "quiz_attempt", a.ID,
	)

	msg := fmt.Sprintf("You scored %d/%d (%.2f%%) on attempt #%d.", a.MarksObtained, a.TotalMarks, a.Percentage, a.AttemptNumber)
	if a.PendingManualGrading > 0 {
		msg += fmt.Sprintf(" %d answer(s) still await manual grading.", a.PendingManualGrading)
	}
	_, err := obs.svc.Notify(ctx, NewNotification{
		UserID:  a.StudentID,
		Title:   "Quiz graded: " + q.Title,
		Message: msg,
		Type:    TypeGrade,
		LinkURL: fmt.Sprintf("/quizzes/%d/attempts/%d", q.ID, a.ID),
		Email:   true,
	})
	return err
}
