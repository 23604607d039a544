package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/apps/api/echo"
	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/testutil"
)

type app struct {
	*testutil.Env
	srv *echoapi.Server
}

func setup(t *testing.T, opts ...func(*echoapi.ServerDeps)) app {
	t.Helper()
	env := testutil.NewEnv(t)

	deps := echoapi.ServerDeps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		Validate:        env.Validate,
		Translator:      env.Translator,
		DisableReqLogs:  true,
		UserSvc:         env.Users,
		CourseSvc:       env.Courses,
		EnrollmentSvc:   env.Enrollments,
		QuizSvc:         env.Quizzes,
		AssignmentSvc:   env.Assignments,
		AttendanceSvc:   env.Attendance,
		MaterialSvc:     env.Materials,
		NotificationSvc: env.Notifications,
		ReportSvc:       env.Reports,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv := echoapi.NewServer(deps)
	t.Cleanup(func() { _ = srv.Close() })
	return app{Env: env, srv: srv}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func newAuthRequest(t *testing.T, method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	if data != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(data))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

// do sends the request and decodes the response body into out, when not nil.
func (a app) do(t *testing.T, method, path, token string, data, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(t, method, path, token, data)
	a.srv.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (a app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.token, tt.body, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func (a app) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(a.Conf, echoapi.NewUserClaims(a.Conf, usr))
	require.NoError(t, err)
	return token
}
