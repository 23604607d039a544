package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

// checkUniqueness must be called with a lock held.
func (repo *userRepository) checkUniqueness(username, email, usn string, excludedUsers []user.User) error {
	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		switch {
		case usr.Username == username:
			return user.ErrUsernameExists
		case usr.Email == email:
			return user.ErrEmailExists
		case usn != "" && usr.USN == usn:
			return user.ErrUSNExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(
	ctx context.Context,
	username, email, usn string,
	excludedUsers []user.User,
	_ ...core.DBExecutor,
) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, usn, excludedUsers)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.USN, nil); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.nextID("users")
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if s := strings.ToLower(filter.Search); s != "" {
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s) ||
			strings.Contains(strings.ToLower(usr.USN), s)) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !usr.HasAnyRole(filter.Roles...) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func lessUser(a, b user.User, field string) (less, equal bool) {
	switch field {
	case "name":
		return a.Name < b.Name, a.Name == b.Name
	case "username":
		return a.Username < b.Username, a.Username == b.Username
	case "usn":
		return a.USN < b.USN, a.USN == b.USN
	case "email":
		return a.Email < b.Email, a.Email == b.Email
	case "role":
		return a.Role < b.Role, a.Role == b.Role
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Before(b.LastLogin), a.LastLogin.Equal(b.LastLogin)
	}
	return a.ID < b.ID, a.ID == b.ID
}

func (repo *userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if matchUser(usr, filter) {
			users = append(users, usr)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "id", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			less, equal := lessUser(users[i], users[j], ord.Field)
			if equal {
				continue
			}
			return less == ord.Ascending
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.USN != "" && usr.USN == filter.USN,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.USN, []user.User{usr}); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			deleted++
			for mid, m := range repo.db.materials {
				if m.UploadedBy != nil && *m.UploadedBy == id {
					m.UploadedBy = nil
					repo.db.materials[mid] = m
				}
			}
		}
	}
	return deleted, nil
}
