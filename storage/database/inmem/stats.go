package inmemdb

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/report"
	"github.com/trezcool/edunex/core/user"
)

type statsRepository struct {
	db *DB
}

var _ report.StatsRepository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *DB) *statsRepository {
	return &statsRepository{db: db}
}

func (repo *statsRepository) DashboardStats(ctx context.Context, _ ...core.DBExecutor) (report.DashboardStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var stats report.DashboardStats
	for _, usr := range repo.db.users {
		stats.TotalUsers++
		switch usr.Role {
		case user.RoleStudent:
			stats.Students++
		case user.RoleInstructor:
			stats.Instructors++
		case user.RoleAdmin:
			stats.Admins++
		}
		if usr.IsActive {
			stats.ActiveUsers++
		}
	}
	for _, c := range repo.db.courses {
		stats.TotalCourses++
		if c.IsActive {
			stats.ActiveCourses++
		}
	}
	for _, e := range repo.db.enrollments {
		if e.Status != enrollment.StatusDropped {
			stats.TotalEnrollments++
		}
	}
	stats.TotalAssignments = int64(len(repo.db.assignments))
	for _, s := range repo.db.submissions {
		if s.Status != assignment.StatusGraded {
			stats.PendingSubmissions++
		}
	}
	stats.TotalQuizzes = int64(len(repo.db.quizzes))

	sum := decimal.Zero
	for _, a := range repo.db.attempts {
		if a.Status == quiz.StatusGraded {
			stats.GradedAttempts++
			sum = sum.Add(decimal.NewFromFloat(a.Percentage))
		}
	}
	if stats.GradedAttempts > 0 {
		stats.AvgQuizPercentage, _ = sum.DivRound(decimal.NewFromInt(stats.GradedAttempts), 2).Float64()
	}
	return stats, nil
}
