// Package inmemdb implements the repositories in memory. Used by tests and local runs without PostgreSQL.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/material"
	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/user"
)

type (
	// DB holds every table behind a single lock.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		seq   map[string]int64

		users         map[int64]user.User
		courses       map[int64]course.Course
		enrollments   map[int64]enrollment.Enrollment
		assignments   map[int64]assignment.Assignment
		submissions   map[int64]assignment.Submission
		quizzes       map[int64]quiz.Quiz
		questions     map[int64]quiz.Question
		attempts      map[int64]quiz.Attempt
		answers       map[int64]quiz.Answer
		attendance    map[int64]attendance.Attendance
		materials     map[int64]material.Material
		notifications map[int64]notification.Notification
		activities    map[int64]notification.Activity
	}
)

func Open() *DB {
	return &DB{
		seq:           make(map[string]int64),
		users:         make(map[int64]user.User),
		courses:       make(map[int64]course.Course),
		enrollments:   make(map[int64]enrollment.Enrollment),
		assignments:   make(map[int64]assignment.Assignment),
		submissions:   make(map[int64]assignment.Submission),
		quizzes:       make(map[int64]quiz.Quiz),
		questions:     make(map[int64]quiz.Question),
		attempts:      make(map[int64]quiz.Attempt),
		answers:       make(map[int64]quiz.Answer),
		attendance:    make(map[int64]attendance.Attendance),
		materials:     make(map[int64]material.Material),
		notifications: make(map[int64]notification.Notification),
		activities:    make(map[int64]notification.Activity),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

// Transactor serialises units of work. Nothing is rolled back: services validate before writing.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}
