package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) codeTaken(c course.Course) bool {
	for _, other := range repo.db.courses {
		if other.ID != c.ID && strings.EqualFold(other.Code, c.Code) {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(c) {
		return course.Course{}, course.ErrCodeExists
	}
	c.ID = repo.db.nextID("courses")
	repo.db.courses[c.ID] = c
	return c, nil
}

func matchCourse(c course.Course, filter *course.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if s := strings.ToLower(filter.Search); s != "" {
		if !(strings.Contains(strings.ToLower(c.Code), s) ||
			strings.Contains(strings.ToLower(c.Name), s) ||
			strings.Contains(strings.ToLower(c.Description), s)) {
			return false
		}
	}
	if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
		return false
	}
	if filter.InstructorID != 0 && c.InstructorID != filter.InstructorID {
		return false
	}
	if filter.IsActive != nil && c.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func (repo *courseRepository) QueryCourses(
	ctx context.Context,
	filter *course.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if matchCourse(c, filter) {
			courses = append(courses, c)
		}
	}
	asc, field := true, "id"
	if len(ordering) > 0 {
		asc, field = ordering[0].Ascending, ordering[0].Field
	}
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		if !asc {
			a, b = b, a
		}
		switch field {
		case "code":
			return a.Code < b.Code
		case "name":
			return a.Name < b.Name
		case "category":
			return a.Category < b.Category
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int64, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	if repo.codeTaken(c) {
		return course.Course{}, course.ErrCodeExists
	}
	repo.db.courses[c.ID] = c
	return c, nil
}

// DeleteCourse cascades to everything attached to the course.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for eid, e := range repo.db.enrollments {
		if e.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.CourseID == id {
			repo.db.deleteAssignment(aid)
		}
	}
	for qid, q := range repo.db.quizzes {
		if q.CourseID == id {
			repo.db.deleteQuiz(qid)
		}
	}
	for rid, r := range repo.db.attendance {
		if r.CourseID == id {
			delete(repo.db.attendance, rid)
		}
	}
	for mid, m := range repo.db.materials {
		if m.CourseID == id {
			delete(repo.db.materials, mid)
		}
	}
	return nil
}
