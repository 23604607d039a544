package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

const userColumns = "id, name, username, usn, email, phone, role, is_active, password_hash, created_at, updated_at, last_login"

var userOrderColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"username":   "username",
	"usn":        "usn",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	USN          null.String `db:"usn"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		USN:          r.USN.String,
		Email:        r.Email,
		Phone:        r.Phone.String,
		Role:         user.Role(r.Role),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func userArgs(usr user.User) []interface{} {
	return []interface{}{
		usr.Name,
		usr.Username,
		null.NewString(usr.USN, usr.USN != ""),
		usr.Email,
		null.NewString(usr.Phone, usr.Phone != ""),
		string(usr.Role),
		usr.IsActive,
		usr.PasswordHash,
		usr.CreatedAt,
		usr.UpdatedAt,
		null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func mapUserUniqueErr(err error) error {
	switch {
	case isUniqueViolation(err, "users_username_key"):
		return user.ErrUsernameExists
	case isUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	case isUniqueViolation(err, "users_usn_key"):
		return user.ErrUSNExists
	}
	return err
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo *userRepository) CheckUniqueness(
	ctx context.Context,
	username, email, usn string,
	excludedUsers []user.User,
	svcExec ...core.DBExecutor,
) error {
	w := &where{}
	w.add("(username = ? OR email = ? OR (usn IS NOT NULL AND usn = ?))", username, email, usn)
	if len(excludedUsers) > 0 {
		ids := make([]int64, len(excludedUsers))
		for i, u := range excludedUsers {
			ids[i] = u.ID
		}
		q, args, err := sqlx.In("id NOT IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "expanding excluded users")
		}
		w.add(q, args...)
	}

	exec := repo.getExec(svcExec)
	var rows []userRow
	q := exec.Rebind("SELECT " + userColumns + " FROM users" + w.String())
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		switch {
		case r.Username == username:
			return user.ErrUsernameExists
		case r.Email == email:
			return user.ErrEmailExists
		case usn != "" && r.USN.String == usn:
			return user.ErrUSNExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, svcExec ...core.DBExecutor) (user.User, error) {
	q := `INSERT INTO users (name, username, usn, email, phone, role, is_active, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &usr.ID, q, userArgs(usr)...); err != nil {
		if uerr := mapUserUniqueErr(err); uerr != err {
			return user.User{}, uerr
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	svcExec ...core.DBExecutor,
) ([]user.User, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			s := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(usn, '')) LIKE ?)", s, s, s, s)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, len(filter.Roles))
			for i, r := range filter.Roles {
				roles[i] = string(r)
			}
			if err := w.in("role", roles); err != nil {
				return nil, errors.Wrap(err, "expanding roles")
			}
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom)
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo)
		}
	}

	exec := repo.getExec(svcExec)
	q := exec.Rebind("SELECT " + userColumns + " FROM users" + w.String() + orderBy(ordering, userOrderColumns, "id"))
	var rows []userRow
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, svcExec ...core.DBExecutor) (user.User, error) {
	w := &where{}
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.USN != "":
		w.add("usn = ?", filter.USN)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	exec := repo.getExec(svcExec)
	var row userRow
	q := exec.Rebind("SELECT " + userColumns + " FROM users" + w.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, exec, &row, q, w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, svcExec ...core.DBExecutor) (user.User, error) {
	q := `UPDATE users SET name = $1, username = $2, usn = $3, email = $4, phone = $5, role = $6, is_active = $7,
		password_hash = $8, created_at = $9, updated_at = $10, last_login = $11 WHERE id = $12`
	res, err := repo.getExec(svcExec).ExecContext(ctx, q, append(userArgs(usr), usr.ID)...)
	if err != nil {
		if uerr := mapUserUniqueErr(err); uerr != err {
			return user.User{}, uerr
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []int64, svcExec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exec := repo.getExec(svcExec)
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "expanding ids")
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted users")
}
