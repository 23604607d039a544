// Package boiledrepos holds the repositories built on sqlboiler raw queries.
package boiledrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/report"
)

const dashboardStatsQuery = `
SELECT
	(SELECT COUNT(*) FROM users)                                 AS total_users,
	(SELECT COUNT(*) FROM users WHERE role = 'STUDENT')          AS students,
	(SELECT COUNT(*) FROM users WHERE role = 'INSTRUCTOR')       AS instructors,
	(SELECT COUNT(*) FROM users WHERE role = 'ADMIN')            AS admins,
	(SELECT COUNT(*) FROM users WHERE is_active)                 AS active_users,
	(SELECT COUNT(*) FROM courses)                               AS total_courses,
	(SELECT COUNT(*) FROM courses WHERE is_active)               AS active_courses,
	(SELECT COUNT(*) FROM enrollments WHERE status <> 'DROPPED') AS total_enrollments,
	(SELECT COUNT(*) FROM assignments)                           AS total_assignments,
	(SELECT COUNT(*) FROM submissions WHERE status <> 'GRADED')  AS pending_submissions,
	(SELECT COUNT(*) FROM quizzes)                               AS total_quizzes,
	(SELECT COUNT(*) FROM quiz_attempts WHERE status = 'GRADED') AS graded_attempts,
	(SELECT COALESCE(ROUND(AVG(percentage)::numeric, 2), 0)
		FROM quiz_attempts WHERE status = 'GRADED')              AS avg_quiz_percentage`

type statsRepository struct {
	exec core.DBExecutor
}

var _ report.StatsRepository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) *statsRepository {
	return &statsRepository{exec: exec}
}

func (repo statsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo statsRepository) DashboardStats(ctx context.Context, svcExec ...core.DBExecutor) (report.DashboardStats, error) {
	var stats report.DashboardStats
	if err := queries.Raw(dashboardStatsQuery).Bind(ctx, repo.getExec(svcExec), &stats); err != nil {
		return report.DashboardStats{}, errors.Wrap(err, "computing dashboard stats")
	}
	return stats, nil
}
