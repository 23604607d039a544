package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/testutil"
)

type migrateCall struct {
	command string
	args    []string
}

func setup(t *testing.T) (*commandLine, *testutil.Env, *[]migrateCall) {
	t.Helper()
	env := testutil.NewEnv(t)
	calls := make([]migrateCall, 0)
	cli := &commandLine{
		usrRepo: env.UserRepo,
		usrSvc:  env.Users,
		migrate: func(_ context.Context, command string, args ...string) error {
			calls = append(calls, migrateCall{command: command, args: args})
			return nil
		},
		out: new(bytes.Buffer),
	}
	return cli, env, &calls
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_help(t *testing.T) {
	cli, _, _ := setup(t)
	mockPassword(t, "")

	tests := []struct {
		name string
		args []string // without program name
	}{
		{name: "no command"},
		{name: "unknown command", args: []string{"lol"}},
		{name: "adduser: no args", args: []string{"adduser"}},
		{name: "adduser: no email", args: []string{"adduser", "-username", "root"}},
		{name: "adduser: unknown flag", args: []string{"adduser", "-lol"}},
		{name: "adduser: no password", args: []string{"adduser", "-username", "root", "-email", "root@test.cd"}},
		{name: "resetpassword: no args", args: []string{"resetpassword"}},
		{name: "resetpassword: no password", args: []string{"resetpassword", "-username", "root"}},
		{name: "importusers: no args", args: []string{"importusers"}},
		{name: "migrate: no command", args: []string{"migrate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			assert.Equal(t, errHelp, err)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, calls := setup(t)

	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	require.NoError(t, cli.run([]string{"admin", "migrate", "down-to", "1"}))

	assert.Equal(t, []migrateCall{
		{command: "up", args: []string{}},
		{command: "down-to", args: []string{"1"}},
	}, *calls)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, _ := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken", "taken@test.cd", "", user.RoleStudent, true)

	t.Run("create admin", func(t *testing.T) {
		mockPassword(t, "s3cret")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "Root", "-email", "ROOT@test.cd"}))

		usr, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "root"})
		require.NoError(t, err)
		assert.Equal(t, "root@test.cd", usr.Email)
		assert.Equal(t, "root", usr.Name)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("s3cret"))
	})

	t.Run("update existing", func(t *testing.T) {
		mockPassword(t, "n3w")
		require.NoError(t, cli.run([]string{
			"admin", "adduser", "-username", "root", "-email", "root@test.cd", "-name", "Root Admin", "-role", "instructor",
		}))

		usr, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "root"})
		require.NoError(t, err)
		assert.Equal(t, "Root Admin", usr.Name)
		assert.Equal(t, user.RoleInstructor, usr.Role)
		assert.NoError(t, usr.CheckPassword("n3w"))
	})

	t.Run("invalid role", func(t *testing.T) {
		mockPassword(t, "s3cret")
		err := cli.run([]string{"admin", "adduser", "-username", "bob", "-email", "bob@test.cd", "-role", "janitor"})
		assert.EqualError(t, err, "invalid role: janitor")
	})

	t.Run("email taken", func(t *testing.T) {
		mockPassword(t, "s3cret")
		err := cli.run([]string{"admin", "adduser", "-username", "bob", "-email", "taken@test.cd"})
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", user.RoleStudent, true)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "user not found", uname: "lol", pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", uname: usr.Username, pwd: "lol"},
		{name: "reset with email", uname: "AWE@test.cd", pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run([]string{"admin", "resetpassword", "-username", tt.uname})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)

			got, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, got.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_importUsers(t *testing.T) {
	cli, env, _ := setup(t)
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken", "taken@test.cd", "", user.RoleStudent, true)

	path := filepath.Join(t.TempDir(), "users.csv")
	csv := "username,email,fullName,password,role\n" +
		"ada,ada@test.cd,Ada Lovelace," + testutil.Password + ",instructor\n" +
		"taken,other@test.cd,Someone," + testutil.Password + ",\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	t.Run("missing file", func(t *testing.T) {
		err := cli.run([]string{"admin", "importusers", "-file", filepath.Join(t.TempDir(), "nope.csv")})
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("import", func(t *testing.T) {
		require.NoError(t, cli.run([]string{"admin", "importusers", "-file", path}))

		out := cli.out.(*bytes.Buffer).String()
		assert.Contains(t, out, "created 1 user(s)")
		assert.Contains(t, out, "row 2 (taken)")

		usr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{Username: "ada"})
		require.NoError(t, err)
		assert.Equal(t, user.RoleInstructor, usr.Role)
		assert.Equal(t, "Ada Lovelace", usr.Name)
	})
}
