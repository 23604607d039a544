package user_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/testutil"
)

func newUser(name, uname, email string, role user.Role) user.NewUser {
	return user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Role:            role,
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken", "taken@test.cd", "", user.RoleStudent, true)

	tests := []struct {
		name     string
		nu       user.NewUser
		wantErr  bool
		wantFlds []string
	}{
		{name: "valid", nu: newUser(" Jane Doe ", "JaneD", "Jane@Test.cd", user.RoleInstructor)},
		{name: "username taken", nu: newUser("Other", "TAKEN", "other@test.cd", ""), wantErr: true, wantFlds: []string{"username"}},
		{name: "email taken", nu: newUser("Other", "other", "taken@test.cd", ""), wantErr: true, wantFlds: []string{"email"}},
		{
			name: "weak password",
			nu: user.NewUser{
				Name: "Weak", Username: "weak", Email: "weak@test.cd", Password: "password", PasswordConfirm: "password",
			},
			wantErr: true,
		},
		{
			name: "password mismatch",
			nu: user.NewUser{
				Name: "Mismatch", Username: "mismatch", Email: "m@test.cd", Password: testutil.Password, PasswordConfirm: "nope",
			},
			wantErr: true,
		},
		{name: "invalid role", nu: newUser("Role", "roleless", "role@test.cd", user.Role("GOD")), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Mail.Reset()
			nu := tt.nu
			err := nu.Validate(env.Validate, env.Users)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsKind(err, core.KindInvalidInput) || isValidatorErr(err))
				if len(tt.wantFlds) > 0 {
					var verr *core.ValidationError
					require.True(t, errors.As(err, &verr))
					require.Len(t, verr.Fields, 1)
					assert.Equal(t, tt.wantFlds[0], verr.Fields[0].Field)
				}
				return
			}
			require.NoError(t, err)

			usr, err := env.Users.Create(ctx, nu)
			require.NoError(t, err)
			assert.NotZero(t, usr.ID)
			assert.Equal(t, "Jane Doe", usr.Name)
			assert.Equal(t, "janed", usr.Username)
			assert.Equal(t, "jane@test.cd", usr.Email)
			assert.Equal(t, user.RoleInstructor, usr.Role)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(testutil.Password))

			msgs := env.Mail.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "welcome", msgs[0].TemplateName)
			assert.Equal(t, "jane@test.cd", msgs[0].To[0].Address)
		})
	}
}

func isValidatorErr(err error) bool {
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "John", "john", "john@test.cd", testutil.Password, user.RoleStudent, true)
	testutil.CreateUser(t, env.UserRepo, "Mary", "mary", "mary@test.cd", "", user.RoleStudent, true)

	uu := user.UpdateUser{Username: "mary"}
	err := uu.Validate(usr, env.Validate, env.Users)
	assert.True(t, core.IsKind(err, core.KindInvalidInput))

	uu = user.UpdateUser{Name: "Johnny", IsActive: testutil.BoolPtr(false)}
	require.NoError(t, uu.Validate(usr, env.Validate, env.Users))
	updated, err := env.Users.Update(ctx, usr, uu)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.Name)
	assert.Equal(t, "john", updated.Username)
	assert.False(t, updated.IsActive)

	reactivated, err := env.Users.SetActive(ctx, usr.ID, true)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)

	_, err = env.Users.SetActive(ctx, 9999, true)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.UserRepo, "Alice", "alice", "alice@test.cd", "", user.RoleStudent, true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", "", user.RoleInstructor, true)
	carl := testutil.CreateUser(t, env.UserRepo, "Carl", "carl", "carl@test.cd", "", user.RoleStudent, false)

	ids := func(users []user.User) []int64 {
		res := make([]int64, 0, len(users))
		for _, u := range users {
			res = append(res, u.ID)
		}
		return res
	}

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []int64
	}{
		{name: "all", want: []int64{alice.ID, bob.ID, carl.ID}},
		{name: "search", filter: &user.QueryFilter{Search: "BO"}, want: []int64{bob.ID}},
		{name: "role", filter: &user.QueryFilter{Roles: []user.Role{user.RoleStudent}}, want: []int64{alice.ID, carl.ID}},
		{name: "inactive", filter: &user.QueryFilter{IsActive: testutil.BoolPtr(false)}, want: []int64{carl.ID}},
		{name: "ordering", ordering: []core.DBOrdering{{Field: "name"}}, want: []int64{carl.ID, bob.ID, alice.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := env.Users.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(users))
		})
	}
}

func TestService_PasswordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "John", "john", "john@test.cd", testutil.Password, user.RoleStudent, true)
	testutil.CreateUser(t, env.UserRepo, "Gone", "gone", "gone@test.cd", "", user.RoleStudent, false)

	assert.Equal(t, user.ErrNotFound, env.Users.RequestPasswordReset(ctx, "nobody@test.cd"))
	assert.Equal(t, user.ErrNotFound, env.Users.RequestPasswordReset(ctx, "gone@test.cd"))

	require.NoError(t, env.Users.RequestPasswordReset(ctx, " JOHN@test.cd "))
	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "password_reset", msgs[0].TemplateName)
	data := reflect.ValueOf(msgs[0].TemplateData)
	uid, token := data.FieldByName("UID").String(), data.FieldByName("Token").String()
	assert.Equal(t, user.EncodeUID(usr), uid)

	const newPwd = "N3w-Passw0rd!"
	tests := []struct {
		name    string
		data    user.ResetUserPassword
		wantErr bool
	}{
		{name: "bad uid", data: user.ResetUserPassword{UID: "!!", Token: token, Password: newPwd}, wantErr: true},
		{name: "bad token", data: user.ResetUserPassword{UID: uid, Token: "abc-def", Password: newPwd}, wantErr: true},
		{name: "weak password", data: user.ResetUserPassword{UID: uid, Token: token, Password: "weak"}, wantErr: true},
		{name: "valid", data: user.ResetUserPassword{UID: uid, Token: token, Password: newPwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Users.ResetPassword(ctx, tt.data)
			if tt.wantErr {
				assert.True(t, core.IsKind(err, core.KindInvalidInput))
				return
			}
			require.NoError(t, err)
			updated, err := env.Users.GetByID(ctx, usr.ID)
			require.NoError(t, err)
			assert.NoError(t, updated.CheckPassword(newPwd))
		})
	}
}

func TestService_BulkCreate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.CreateUser(t, env.UserRepo, "Existing", "1ms21cs002", "x@test.cd", "", user.RoleStudent, true)

	bc := user.BulkCreate{Prefix: "1ms21cs", Start: 1, End: 3, Password: testutil.Password}
	require.NoError(t, bc.Validate(env.Validate))
	assert.Equal(t, "1MS21CS", bc.Prefix)
	assert.Equal(t, user.RoleStudent, bc.Role)

	res, err := env.Users.BulkCreate(ctx, bc)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "1MS21CS001", res.Created[0].USN)
	assert.Equal(t, "1ms21cs001", res.Created[0].Username)
	assert.Equal(t, "1MS21CS003", res.Created[1].USN)
	assert.NoError(t, res.Created[1].CheckPassword(testutil.Password))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "1MS21CS002", res.Errors[0].Key)

	tooBig := user.BulkCreate{Prefix: "X", Start: 0, End: 100, Password: testutil.Password}
	assert.True(t, core.IsKind(tooBig.Validate(env.Validate), core.KindInvalidInput))

	_, err = env.Users.BulkCreate(ctx, user.BulkCreate{Prefix: "Y", Start: 1, End: 1, Password: "12345678"})
	assert.True(t, core.IsKind(err, core.KindInvalidInput))
}

func TestService_ImportCSV(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	t.Run("missing columns", func(t *testing.T) {
		_, err := env.Users.ImportCSV(ctx, strings.NewReader("username,email\nfoo,foo@test.cd\n"))
		assert.Equal(t, user.ErrInvalidCSV, err)
	})

	t.Run("rows", func(t *testing.T) {
		csv := "username,email,fullName,password,role,usn\n" +
			"ada,ada@test.cd,Ada Lovelace," + testutil.Password + ",instructor,\n" +
			"alan,alan@test.cd,Alan Turing," + testutil.Password + ",,1ms21cs010\n" +
			"ada,dup@test.cd,Ada Again," + testutil.Password + ",,\n" +
			"bad,bad@test.cd,Bad Role," + testutil.Password + ",wizard,\n" +
			"x,not-an-email,X," + testutil.Password + ",,\n"
		res, err := env.Users.ImportCSV(ctx, strings.NewReader(csv))
		require.NoError(t, err)

		require.Len(t, res.Created, 2)
		assert.Equal(t, user.RoleInstructor, res.Created[0].Role)
		assert.Equal(t, "Ada Lovelace", res.Created[0].Name)
		assert.Equal(t, user.RoleStudent, res.Created[1].Role)
		assert.Equal(t, "1MS21CS010", res.Created[1].USN)

		require.Len(t, res.Errors, 3)
		assert.Equal(t, 3, res.Errors[0].Row)
		assert.Equal(t, 4, res.Errors[1].Row)
		assert.Equal(t, "invalid role: wizard", res.Errors[1].Error)
		assert.Equal(t, 5, res.Errors[2].Row)
		assert.Len(t, env.Mail.Messages(), 2)
	})
}
