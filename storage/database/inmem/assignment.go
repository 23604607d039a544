package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

// deleteAssignment cascades to submissions. Must be called with the write lock held.
func (db *DB) deleteAssignment(id int64) {
	delete(db.assignments, id)
	for sid, s := range db.submissions {
		if s.AssignmentID == id {
			delete(db.submissions, sid)
		}
	}
}

func (repo *assignmentRepository) CreateAssignment(
	ctx context.Context,
	a assignment.Assignment,
	_ ...core.DBExecutor,
) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextID("assignments")
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id int64, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(
	ctx context.Context,
	courseIDs []int64,
	_ ...core.DBExecutor,
) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if len(courseIDs) == 0 || core.Int64sContain(courseIDs, a.CourseID) {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DueDate.Equal(assignments[j].DueDate) {
			return assignments[i].DueDate.Before(assignments[j].DueDate)
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

func (repo *assignmentRepository) UpdateAssignment(
	ctx context.Context,
	a assignment.Assignment,
	_ ...core.DBExecutor,
) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	repo.db.deleteAssignment(id)
	return nil
}

func (repo *assignmentRepository) CreateSubmission(
	ctx context.Context,
	s assignment.Submission,
	_ ...core.DBExecutor,
) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.submissions {
		if other.AssignmentID == s.AssignmentID && other.StudentID == s.StudentID {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
	}
	s.ID = repo.db.nextID("submissions")
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id int64, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) FindSubmission(
	ctx context.Context,
	assignmentID, studentID int64,
	_ ...core.DBExecutor,
) (assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func hasStatus(statuses []assignment.SubmissionStatus, st assignment.SubmissionStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (repo *assignmentRepository) QuerySubmissions(
	ctx context.Context,
	filter assignment.SubmissionFilter,
	_ ...core.DBExecutor,
) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.AssignmentID != 0 && s.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != 0 && s.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != 0 && repo.db.assignments[s.AssignmentID].CourseID != filter.CourseID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, s.Status) {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(
	ctx context.Context,
	s assignment.Submission,
	_ ...core.DBExecutor,
) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.submissions[s.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	repo.db.submissions[s.ID] = s
	return s, nil
}
