package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// LockCourse is a no-op: enrollments only happen inside Transactor.InTx, which is already serialised.
func (repo *enrollmentRepository) LockCourse(ctx context.Context, courseID int64, _ ...core.DBExecutor) error {
	return nil
}

func (repo *enrollmentRepository) CountSeats(ctx context.Context, courseID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID && e.Status != enrollment.StatusDropped {
			n++
		}
	}
	return n, nil
}

func (repo *enrollmentRepository) CreateEnrollment(
	ctx context.Context,
	e enrollment.Enrollment,
	_ ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.enrollments {
		if other.StudentID == e.StudentID && other.CourseID == e.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	e.ID = repo.db.nextID("enrollments")
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id int64, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) FindEnrollment(
	ctx context.Context,
	studentID, courseID int64,
	_ ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) query(match func(e enrollment.Enrollment) bool) []enrollment.Enrollment {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if match(e) {
			enrs = append(enrs, e)
		}
	}
	sort.Slice(enrs, func(i, j int) bool {
		if !enrs[i].EnrolledAt.Equal(enrs[j].EnrolledAt) {
			return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt)
		}
		return enrs[i].ID > enrs[j].ID
	})
	return enrs
}

func (repo *enrollmentRepository) QueryByStudent(ctx context.Context, studentID int64, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	return repo.query(func(e enrollment.Enrollment) bool { return e.StudentID == studentID }), nil
}

func (repo *enrollmentRepository) QueryByCourse(ctx context.Context, courseID int64, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	return repo.query(func(e enrollment.Enrollment) bool { return e.CourseID == courseID }), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(
	ctx context.Context,
	e enrollment.Enrollment,
	_ ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}
