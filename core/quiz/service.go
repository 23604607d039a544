package quiz

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

const (
	defaultDuration     = 30
	defaultTotalMarks   = 100
	defaultPassingMarks = 40
	defaultMaxAttempts  = 1
	defaultMarks        = 1

	// bounds the recount/insert loop of StartAttempt when concurrent starts collide
	maxStartRetries = 5
)

var (
	// errors
	ErrQuizNotFound     = core.NewError(core.KindNotFound, "quiz not found")
	ErrQuestionNotFound = core.NewError(core.KindNotFound, "question not found")
	ErrAttemptNotFound  = core.NewError(core.KindNotFound, "quiz attempt not found")
	ErrAnswerNotFound   = core.NewError(core.KindNotFound, "answer not found")
	ErrStudentNotFound  = core.NewError(core.KindNotFound, "student not found")
	ErrLimitExceeded    = core.NewError(core.KindLimitExceeded, "maximum attempts reached")
	ErrNotYetOpen       = core.NewError(core.KindNotYetOpen, "quiz has not started yet")
	ErrWindowClosed     = core.NewError(core.KindWindowClosed, "quiz has ended")
	ErrQuizInactive     = core.NewError(core.KindForbidden, "quiz is not active")
	ErrAlreadySubmitted = core.NewError(core.KindConflict, "attempt was already submitted")
	ErrNotSubmitted     = core.NewError(core.KindConflict, "attempt is still in progress")
	ErrStartContention  = core.NewError(core.KindConflict, "too many concurrent attempts, try again")
	ErrForeignQuestion  = core.NewError(core.KindInvalidInput, "answer references a question of another quiz")
	ErrDuplicateAnswer  = core.NewError(core.KindInvalidInput, "question answered more than once")
	ErrNotShortAnswer   = core.NewError(core.KindInvalidInput, "only short answers are graded manually")
	ErrInvalidMarks     = core.NewError(core.KindInvalidInput, "marks must be between 0 and the question marks")
	ErrInvalidWindow    = core.NewError(core.KindInvalidInput, "end time must be after start time")
	ErrMissingOptions   = core.NewError(core.KindInvalidInput, "multiple choice questions need at least options A and B")
	ErrDuplicateAttempt = errors.New("attempt number already taken") // returned by repositories on unique violations
	ErrNoStandings      = errors.New("no standings recorded")        // returned by rankers that hold nothing for a quiz

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuiz(ctx context.Context, id int64, exec ...core.DBExecutor) (Quiz, error)
		QueryQuizzes(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		// SetRemindedAt only touches reminded_at, leaving concurrent edits of the quiz intact.
		SetRemindedAt(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
		DeleteQuiz(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		// QueryQuestions returns the questions of a quiz ordered by Order, then ID.
		QueryQuestions(ctx context.Context, quizID int64, exec ...core.DBExecutor) ([]Question, error)

		CountAttempts(ctx context.Context, quizID, studentID int64, exec ...core.DBExecutor) (int, error)
		// CreateAttempt returns ErrDuplicateAttempt when (quiz, student, attempt number) is taken.
		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		// GetAttempt locks the attempt row until the end of the transaction when forUpdate is set.
		GetAttempt(ctx context.Context, id int64, forUpdate bool, exec ...core.DBExecutor) (Attempt, error)
		QueryAttempts(ctx context.Context, filter AttemptFilter, exec ...core.DBExecutor) ([]Attempt, error)
		UpdateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)

		// CreateAnswers stores answers in the given order.
		CreateAnswers(ctx context.Context, answers []Answer, exec ...core.DBExecutor) ([]Answer, error)
		// QueryAnswers returns the answers of an attempt in the order they were stored.
		QueryAnswers(ctx context.Context, attemptID int64, exec ...core.DBExecutor) ([]Answer, error)
		UpdateAnswer(ctx context.Context, ans Answer, exec ...core.DBExecutor) (Answer, error)
	}

	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
		ListByInstructor(ctx context.Context, instructorID int64) ([]course.Course, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	EnrollmentLister interface {
		CourseIDsOf(ctx context.Context, studentID int64) ([]int64, error)
	}

	// Observer is told about attempt transitions once they are committed.
	Observer interface {
		AttemptStarted(ctx context.Context, q Quiz, a Attempt) error
		AttemptGraded(ctx context.Context, q Quiz, a Attempt) error
	}

	// Ranker serves precomputed leaderboards.
	Ranker interface {
		Top(ctx context.Context, quizID int64, n int) ([]Standing, error)
	}

	Service struct {
		repo        Repository
		tx          core.Transactor
		courses     CourseGetter
		users       UserGetter
		enrollments EnrollmentLister
		logger      core.Logger
		observers   []Observer
		ranker      Ranker
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	courses CourseGetter,
	users UserGetter,
	enrollments EnrollmentLister,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		tx:          tx,
		courses:     courses,
		users:       users,
		enrollments: enrollments,
		logger:      logger,
	}
}

func (svc *Service) AddObservers(obs ...Observer) { svc.observers = append(svc.observers, obs...) }

func (svc *Service) SetRanker(r Ranker) { svc.ranker = r }

// CreateQuiz adds a quiz to an existing course.
func (svc *Service) CreateQuiz(ctx context.Context, nq NewQuiz, courseID int64) (Quiz, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return Quiz{}, err
	}

	now := NowFunc().UTC()
	q := Quiz{
		CourseID:        crs.ID,
		Title:           nq.Title,
		Description:     nq.Description,
		DurationMinutes: intOr(nq.DurationMinutes, defaultDuration),
		TotalMarks:      intOr(nq.TotalMarks, defaultTotalMarks),
		PassingMarks:    intOr(nq.PassingMarks, defaultPassingMarks),
		MaxAttempts:     intOr(nq.MaxAttempts, defaultMaxAttempts),
		IsActive:        true,
		StartTime:       utcPtr(nq.StartTime),
		EndTime:         utcPtr(nq.EndTime),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateQuiz(ctx, q)
}

func (svc *Service) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) UpdateQuiz(ctx context.Context, q Quiz, uq UpdateQuiz) (Quiz, error) {
	if uq.Title != "" {
		q.Title = uq.Title
	}
	if uq.Description != "" {
		q.Description = uq.Description
	}
	if uq.DurationMinutes != nil {
		q.DurationMinutes = *uq.DurationMinutes
	}
	if uq.TotalMarks != nil {
		q.TotalMarks = *uq.TotalMarks
	}
	if uq.PassingMarks != nil {
		q.PassingMarks = *uq.PassingMarks
	}
	if uq.MaxAttempts != nil {
		q.MaxAttempts = *uq.MaxAttempts
	}
	if uq.IsActive != nil {
		q.IsActive = *uq.IsActive
	}
	if uq.StartTime != nil {
		q.StartTime = utcPtr(uq.StartTime)
		q.RemindedAt = nil
	}
	if uq.EndTime != nil {
		q.EndTime = utcPtr(uq.EndTime)
	}
	if err := validateWindow(q.StartTime, q.EndTime); err != nil {
		return Quiz{}, err
	}
	q.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateQuiz(ctx, q)
}

// DeleteQuiz removes a quiz with its questions, attempts and answers.
func (svc *Service) DeleteQuiz(ctx context.Context, id int64) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

func (svc *Service) AddQuestion(ctx context.Context, nq NewQuestion, quizID int64) (Question, error) {
	q, err := svc.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return Question{}, err
	}
	return svc.repo.CreateQuestion(ctx, Question{
		QuizID:        q.ID,
		Text:          nq.Text,
		Type:          nq.Type,
		OptionA:       nq.OptionA,
		OptionB:       nq.OptionB,
		OptionC:       nq.OptionC,
		OptionD:       nq.OptionD,
		CorrectAnswer: nq.CorrectAnswer,
		Marks:         intOr(nq.Marks, defaultMarks),
		Order:         nq.Order,
	})
}

// GetQuestions returns the questions of a quiz in display order.
// Correct answers are blanked when hideAnswers is set.
func (svc *Service) GetQuestions(ctx context.Context, quizID int64, hideAnswers bool) ([]Question, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if hideAnswers {
		for i := range questions {
			questions[i].CorrectAnswer = ""
		}
	}
	return questions, nil
}

// StartAttempt opens a new attempt for the student.
// The attempt number relies on the (quiz, student, attempt number) uniqueness: a concurrent start that
// took the same number makes this one recount and retry, so maxAttempts holds under contention.
func (svc *Service) StartAttempt(ctx context.Context, quizID, studentID int64) (Attempt, error) {
	q, err := svc.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Attempt{}, ErrStudentNotFound
		}
		return Attempt{}, err
	}

	for try := 0; try < maxStartRetries; try++ {
		count, err := svc.repo.CountAttempts(ctx, q.ID, student.ID)
		if err != nil {
			return Attempt{}, err
		}
		if count >= q.MaxAttempts {
			return Attempt{}, ErrLimitExceeded
		}

		now := NowFunc().UTC()
		if err = q.checkWindow(now); err != nil {
			return Attempt{}, err
		}
		if !q.IsActive {
			return Attempt{}, ErrQuizInactive
		}

		a, err := svc.repo.CreateAttempt(ctx, Attempt{
			QuizID:        q.ID,
			StudentID:     student.ID,
			AttemptNumber: count + 1,
			Status:        StatusInProgress,
			StartedAt:     now,
		})
		if errors.Cause(err) == ErrDuplicateAttempt {
			continue
		}
		if err != nil {
			return Attempt{}, err
		}

		svc.notify(func(obs Observer) error { return obs.AttemptStarted(ctx, q, a) })
		return a, nil
	}
	return Attempt{}, ErrStartContention
}

// SubmitAttempt stores the student's answers in the given order and grades the attempt.
// The attempt row stays locked for the whole unit, so only one submission of an attempt can succeed.
func (svc *Service) SubmitAttempt(ctx context.Context, attemptID int64, sa SubmitAttempt) (Attempt, error) {
	var a Attempt
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.GetAttempt(ctx, attemptID, true /* forUpdate */, exec); err != nil {
			return err
		}
		if a.Status != StatusInProgress {
			return ErrAlreadySubmitted
		}

		questions, err := svc.questionsByID(ctx, a.QuizID, exec)
		if err != nil {
			return err
		}
		answers := make([]Answer, 0, len(sa.Answers))
		seen := make(map[int64]bool, len(sa.Answers))
		for _, in := range sa.Answers {
			if _, ok := questions[in.QuestionID]; !ok {
				return ErrForeignQuestion
			}
			if seen[in.QuestionID] {
				return ErrDuplicateAnswer
			}
			seen[in.QuestionID] = true
			answers = append(answers, Answer{AttemptID: a.ID, QuestionID: in.QuestionID, Answer: in.Answer})
		}
		if len(answers) > 0 {
			if _, err = svc.repo.CreateAnswers(ctx, answers, exec); err != nil {
				return errors.Wrap(err, "storing answers")
			}
		}

		now := NowFunc().UTC()
		a.SubmittedAt = &now
		a.Status = StatusSubmitted
		if a, err = svc.repo.UpdateAttempt(ctx, a, exec); err != nil {
			return err
		}

		a, err = svc.grade(ctx, a, questions, exec)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}

	svc.notifyGraded(ctx, a)
	return a, nil
}

// GradeAttempt recomputes the score of a submitted attempt. Running it again gives the same result.
func (svc *Service) GradeAttempt(ctx context.Context, attemptID int64) (Attempt, error) {
	var a Attempt
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.GetAttempt(ctx, attemptID, true /* forUpdate */, exec); err != nil {
			return err
		}
		if a.Status == StatusInProgress {
			return ErrNotSubmitted
		}
		a, err = svc.grade(ctx, a, nil, exec)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}

	svc.notifyGraded(ctx, a)
	return a, nil
}

// GradeShortAnswer records the marks an instructor gave to a short answer, then regrades its attempt.
func (svc *Service) GradeShortAnswer(ctx context.Context, attemptID int64, gsa GradeShortAnswer) (Attempt, error) {
	var a Attempt
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.GetAttempt(ctx, attemptID, true /* forUpdate */, exec); err != nil {
			return err
		}
		if a.Status == StatusInProgress {
			return ErrNotSubmitted
		}

		answers, err := svc.repo.QueryAnswers(ctx, a.ID, exec)
		if err != nil {
			return err
		}
		var (
			ans   Answer
			found bool
		)
		for _, an := range answers {
			if an.ID == gsa.AnswerID {
				ans, found = an, true
				break
			}
		}
		if !found {
			return ErrAnswerNotFound
		}

		questions, err := svc.questionsByID(ctx, a.QuizID, exec)
		if err != nil {
			return err
		}
		q, ok := questions[ans.QuestionID]
		if !ok {
			return ErrQuestionNotFound
		}
		if q.Type != TypeShortAnswer {
			return ErrNotShortAnswer
		}
		if gsa.Marks < 0 || gsa.Marks > q.Marks {
			return ErrInvalidMarks
		}

		correct := gsa.Marks == q.Marks
		ans.IsCorrect = &correct
		ans.MarksAwarded = gsa.Marks
		if _, err = svc.repo.UpdateAnswer(ctx, ans, exec); err != nil {
			return err
		}

		a, err = svc.grade(ctx, a, questions, exec)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}

	svc.notifyGraded(ctx, a)
	return a, nil
}

// grade runs the grading pass over the stored answers of a and persists the outcome with exec.
// questions may be nil, in which case they are loaded.
func (svc *Service) grade(ctx context.Context, a Attempt, questions map[int64]Question, exec core.DBExecutor) (Attempt, error) {
	answers, err := svc.repo.QueryAnswers(ctx, a.ID, exec)
	if err != nil {
		return Attempt{}, err
	}
	if questions == nil {
		if questions, err = svc.questionsByID(ctx, a.QuizID, exec); err != nil {
			return Attempt{}, err
		}
	}

	graded, changed := grade(a, answers, questions)
	for _, ans := range changed {
		if _, err = svc.repo.UpdateAnswer(ctx, ans, exec); err != nil {
			return Attempt{}, errors.Wrap(err, "grading answer")
		}
	}
	pending := graded.PendingManualGrading
	if graded, err = svc.repo.UpdateAttempt(ctx, graded, exec); err != nil {
		return Attempt{}, err
	}
	graded.PendingManualGrading = pending
	return graded, nil
}

func (svc *Service) questionsByID(ctx context.Context, quizID int64, exec core.DBExecutor) (map[int64]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, quizID, exec)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// GetAttempt returns an attempt with its answers.
func (svc *Service) GetAttempt(ctx context.Context, attemptID int64) (AttemptDetail, error) {
	a, err := svc.repo.GetAttempt(ctx, attemptID, false)
	if err != nil {
		return AttemptDetail{}, err
	}
	answers, err := svc.repo.QueryAnswers(ctx, a.ID)
	if err != nil {
		return AttemptDetail{}, err
	}
	questions, err := svc.questionsByID(ctx, a.QuizID, nil)
	if err != nil {
		return AttemptDetail{}, err
	}
	a.PendingManualGrading = pendingManualGrading(answers, questions)
	return AttemptDetail{Attempt: a, Answers: answers}, nil
}

// ListResults returns every attempt made on a quiz.
func (svc *Service) ListResults(ctx context.Context, quizID int64) ([]Attempt, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: quizID})
}

// ListAvailableQuizzes returns the active quizzes of a course.
func (svc *Service) ListAvailableQuizzes(ctx context.Context, courseID int64) ([]Quiz, error) {
	if _, err := svc.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuizzes(ctx, Filter{CourseIDs: []int64{courseID}, ActiveOnly: true})
}

// ListAvailableQuizzesForUser returns the active quizzes of the courses the user is enrolled in.
func (svc *Service) ListAvailableQuizzesForUser(ctx context.Context, userID int64) ([]Quiz, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	courseIDs, err := svc.enrollments.CourseIDsOf(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	if len(courseIDs) == 0 {
		return make([]Quiz, 0), nil
	}
	return svc.repo.QueryQuizzes(ctx, Filter{CourseIDs: courseIDs, ActiveOnly: true})
}

// ListInstructorQuizzes returns every quiz of the instructor's courses, inactive ones included.
func (svc *Service) ListInstructorQuizzes(ctx context.Context, instructorID int64) ([]Quiz, error) {
	courses, err := svc.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return make([]Quiz, 0), nil
	}
	ids := make([]int64, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return svc.repo.QueryQuizzes(ctx, Filter{CourseIDs: ids})
}

func (svc *Service) ListUserAttempts(ctx context.Context, quizID, userID int64) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: quizID, StudentID: userID})
}

// ListStudentCourseAttempts returns a student's attempts on the quizzes of a course.
func (svc *Service) ListStudentCourseAttempts(ctx context.Context, studentID, courseID int64) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, AttemptFilter{StudentID: studentID, CourseID: courseID})
}

// Leaderboard returns the n best students of a quiz by their best graded percentage.
func (svc *Service) Leaderboard(ctx context.Context, quizID int64, n int) ([]Standing, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	if svc.ranker != nil {
		standings, err := svc.ranker.Top(ctx, quizID, n)
		if err == nil {
			return standings, nil
		}
		if errors.Cause(err) != ErrNoStandings {
			svc.logger.Warn(fmt.Sprintf("leaderboard of quiz %d unavailable, falling back to the database", quizID), err)
		}
	}

	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: quizID, Status: StatusGraded})
	if err != nil {
		return nil, err
	}
	return rank(attempts, n), nil
}

// rank keeps the best percentage of each student, highest first, ties by student id.
func rank(attempts []Attempt, n int) []Standing {
	best := make(map[int64]float64)
	for _, a := range attempts {
		if pct, ok := best[a.StudentID]; !ok || a.Percentage > pct {
			best[a.StudentID] = a.Percentage
		}
	}
	standings := make([]Standing, 0, len(best))
	for id, pct := range best {
		standings = append(standings, Standing{StudentID: id, Percentage: pct})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Percentage != standings[j].Percentage {
			return standings[i].Percentage > standings[j].Percentage
		}
		return standings[i].StudentID < standings[j].StudentID
	})
	if n > 0 && len(standings) > n {
		standings = standings[:n]
	}
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// DueReminders returns the active quizzes starting within the next window that were not reminded yet.
func (svc *Service) DueReminders(ctx context.Context, window time.Duration) ([]Quiz, error) {
	now := NowFunc().UTC()
	return svc.repo.QueryQuizzes(ctx, Filter{
		ActiveOnly:   true,
		StartsAfter:  now,
		StartsBefore: now.Add(window),
		NotReminded:  true,
	})
}

// MarkReminded records that the start reminder of q was sent and returns the quiz as currently stored.
func (svc *Service) MarkReminded(ctx context.Context, q Quiz) (Quiz, error) {
	if err := svc.repo.SetRemindedAt(ctx, q.ID, NowFunc().UTC()); err != nil {
		return Quiz{}, err
	}
	return svc.repo.GetQuiz(ctx, q.ID)
}

func (svc *Service) notifyGraded(ctx context.Context, a Attempt) {
	q, err := svc.repo.GetQuiz(ctx, a.QuizID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading quiz %d of graded attempt %d", a.QuizID, a.ID), err)
		return
	}
	svc.notify(func(obs Observer) error { return obs.AttemptGraded(ctx, q, a) })
}

// notify runs fn on every observer. Failures are logged: the transition they report is already committed.
func (svc *Service) notify(fn func(obs Observer) error) {
	for _, obs := range svc.observers {
		if err := fn(obs); err != nil {
			svc.logger.Error(fmt.Sprintf("quiz observer %T: %v", obs, err), err)
		}
	}
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
