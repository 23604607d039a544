package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

func TestRollbarLogger_echoesToStd(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	logger.Warn("leaderboard unavailable", errors.New("redis down"), user.User{Username: "ada"})
	logger.Info("started", map[string]interface{}{"quiz": 1})

	out := buf.String()
	assert.Contains(t, out, "[WARN] leaderboard unavailable")
	assert.Contains(t, out, "redis down")
	assert.NotContains(t, out, "ada")
	assert.Contains(t, out, "[INFO] started")
	assert.Contains(t, out, "map[quiz:1]")
}
