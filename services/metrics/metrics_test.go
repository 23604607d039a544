package metricssvc_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/quiz"
	metricssvc "github.com/trezcool/edunex/services/metrics"
)

func TestMetrics_Middleware(t *testing.T) {
	m := metricssvc.New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/quizzes/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/v1/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	for _, path := range []string{"/v1/quizzes/1", "/v1/quizzes/2", "/v1/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `edunex_http_requests_total{code="200",method="GET",route="/v1/quizzes/:id"} 2`)
	assert.Contains(t, body, `edunex_http_requests_total{code="418",method="GET",route="/v1/boom"} 1`)
	assert.Contains(t, body, `edunex_http_request_duration_seconds_count{method="GET",route="/v1/quizzes/:id"} 2`)
}

func TestMetrics_quizObserver(t *testing.T) {
	m := metricssvc.New()
	ctx := context.Background()

	require.NoError(t, m.AttemptStarted(ctx, quiz.Quiz{}, quiz.Attempt{}))
	require.NoError(t, m.AttemptStarted(ctx, quiz.Quiz{}, quiz.Attempt{}))
	require.NoError(t, m.AttemptGraded(ctx, quiz.Quiz{}, quiz.Attempt{TotalMarks: 4, Percentage: 75}))
	require.NoError(t, m.AttemptGraded(ctx, quiz.Quiz{}, quiz.Attempt{TotalMarks: 4, Percentage: 50, PendingManualGrading: 1}))
	require.NoError(t, m.AttemptGraded(ctx, quiz.Quiz{}, quiz.Attempt{})) // no answers: no score

	body := scrape(t, m)
	assert.Contains(t, body, "edunex_quiz_attempts_started_total 2")
	assert.Contains(t, body, `edunex_quiz_attempts_graded_total{pending="false"} 2`)
	assert.Contains(t, body, `edunex_quiz_attempts_graded_total{pending="true"} 1`)
	assert.Contains(t, body, "edunex_quiz_score_percentage_count 2")
	assert.Contains(t, body, "edunex_quiz_score_percentage_sum 125")
}

func TestMetrics_lint(t *testing.T) {
	m := metricssvc.New()
	require.NoError(t, m.AttemptStarted(context.Background(), quiz.Quiz{}, quiz.Attempt{}))

	problems, err := promtest.GatherAndLint(m.Gatherer(), "edunex_quiz_attempts_started_total")
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func scrape(t *testing.T, m *metricssvc.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(body))
}
