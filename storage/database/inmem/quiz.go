package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) *quizRepository {
	return &quizRepository{db: db}
}

// deleteQuiz cascades to questions, attempts and answers. Must be called with the write lock held.
func (db *DB) deleteQuiz(id int64) {
	delete(db.quizzes, id)
	for qid, q := range db.questions {
		if q.QuizID == id {
			delete(db.questions, qid)
		}
	}
	for aid, a := range db.attempts {
		if a.QuizID != id {
			continue
		}
		delete(db.attempts, aid)
		for ansID, ans := range db.answers {
			if ans.AttemptID == aid {
				delete(db.answers, ansID)
			}
		}
	}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q.ID = repo.db.nextID("quizzes")
	repo.db.quizzes[q.ID] = q
	return q, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id int64, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return q, nil
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func matchQuiz(q quiz.Quiz, filter quiz.Filter) bool {
	if len(filter.CourseIDs) > 0 && !core.Int64sContain(filter.CourseIDs, q.CourseID) {
		return false
	}
	if filter.ActiveOnly && !q.IsActive {
		return false
	}
	if !filter.StartsAfter.IsZero() && (q.StartTime == nil || !q.StartTime.After(filter.StartsAfter)) {
		return false
	}
	if !filter.StartsBefore.IsZero() && (q.StartTime == nil || q.StartTime.After(filter.StartsBefore)) {
		return false
	}
	if filter.NotReminded && q.RemindedAt != nil {
		return false
	}
	return true
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, filter quiz.Filter, _ ...core.DBExecutor) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if matchQuiz(q, filter) {
			quizzes = append(quizzes, q)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
		}
		return quizzes[i].ID > quizzes[j].ID
	})
	return quizzes, nil
}

func (repo *quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quizzes[q.ID]; !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	repo.db.quizzes[q.ID] = q
	return q, nil
}

func (repo *quizRepository) SetRemindedAt(ctx context.Context, id int64, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q, ok := repo.db.quizzes[id]
	if !ok {
		return quiz.ErrQuizNotFound
	}
	q.RemindedAt = &at
	repo.db.quizzes[id] = q
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quizzes[id]; !ok {
		return quiz.ErrQuizNotFound
	}
	repo.db.deleteQuiz(id)
	return nil
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question, _ ...core.DBExecutor) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quizzes[q.QuizID]; !ok {
		return quiz.Question{}, quiz.ErrQuizNotFound
	}
	q.ID = repo.db.nextID("questions")
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, quizID int64, _ ...core.DBExecutor) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	questions := make([]quiz.Question, 0)
	for _, q := range repo.db.questions {
		if q.QuizID == quizID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (repo *quizRepository) CountAttempts(ctx context.Context, quizID, studentID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, a := range repo.db.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.attempts {
		if other.QuizID == a.QuizID && other.StudentID == a.StudentID && other.AttemptNumber == a.AttemptNumber {
			return quiz.Attempt{}, quiz.ErrDuplicateAttempt
		}
	}
	a.ID = repo.db.nextID("quiz_attempts")
	repo.db.attempts[a.ID] = a
	return a, nil
}

// GetAttempt ignores forUpdate: attempts are only modified inside Transactor.InTx.
func (repo *quizRepository) GetAttempt(ctx context.Context, id int64, _ bool, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.attempts[id]; ok {
		return a, nil
	}
	return quiz.Attempt{}, quiz.ErrAttemptNotFound
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, filter quiz.AttemptFilter, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for _, a := range repo.db.attempts {
		if filter.QuizID != 0 && a.QuizID != filter.QuizID {
			continue
		}
		if filter.StudentID != 0 && a.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != 0 && repo.db.quizzes[a.QuizID].CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		attempts = append(attempts, a)
	}
	sort.Slice(attempts, func(i, j int) bool {
		if !attempts[i].StartedAt.Equal(attempts[j].StartedAt) {
			return attempts[i].StartedAt.Before(attempts[j].StartedAt)
		}
		return attempts[i].ID < attempts[j].ID
	})
	return attempts, nil
}

func (repo *quizRepository) UpdateAttempt(ctx context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.attempts[a.ID]; !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	stored := a
	stored.PendingManualGrading = 0
	repo.db.attempts[a.ID] = stored
	return a, nil
}

func (repo *quizRepository) CreateAnswers(ctx context.Context, answers []quiz.Answer, _ ...core.DBExecutor) ([]quiz.Answer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	seen := make(map[[2]int64]bool)
	for _, ans := range repo.db.answers {
		seen[[2]int64{ans.AttemptID, ans.QuestionID}] = true
	}
	for _, ans := range answers {
		key := [2]int64{ans.AttemptID, ans.QuestionID}
		if seen[key] {
			return nil, quiz.ErrDuplicateAnswer
		}
		seen[key] = true
	}

	created := make([]quiz.Answer, 0, len(answers))
	for _, ans := range answers {
		ans.ID = repo.db.nextID("answers")
		repo.db.answers[ans.ID] = ans
		created = append(created, ans)
	}
	return created, nil
}

func (repo *quizRepository) QueryAnswers(ctx context.Context, attemptID int64, _ ...core.DBExecutor) ([]quiz.Answer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	answers := make([]quiz.Answer, 0)
	for _, ans := range repo.db.answers {
		if ans.AttemptID == attemptID {
			answers = append(answers, ans)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers, nil
}

func (repo *quizRepository) UpdateAnswer(ctx context.Context, ans quiz.Answer, _ ...core.DBExecutor) (quiz.Answer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.answers[ans.ID]; !ok {
		return quiz.Answer{}, quiz.ErrAnswerNotFound
	}
	repo.db.answers[ans.ID] = ans
	return ans, nil
}
