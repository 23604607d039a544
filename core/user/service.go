package user

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
)

const maxBulkSize = 100

var (
	// errors
	ErrNotFound       = core.NewError(core.KindNotFound, "user not found")
	ErrUserExists     = core.NewError(core.KindConflict, "a user with this username or email already exists")
	ErrEmailExists    = core.NewError(core.KindConflict, "a user with this email already exists")
	ErrUsernameExists = core.NewError(core.KindConflict, "a user with this username already exists")
	ErrUSNExists      = core.NewError(core.KindConflict, "a user with this USN already exists")
	ErrBulkTooLarge   = core.NewError(core.KindInvalidInput, fmt.Sprintf("cannot create more than %d users at once", maxBulkSize))
	ErrInvalidCSV     = core.NewError(core.KindInvalidInput, "invalid CSV: a header with username, email, name and password is required")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists, ErrEmailExists or ErrUSNExists on the first clash found.
		CheckUniqueness(ctx context.Context, username, email, usn string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username, User.Email or User.USN.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		conf:     conf,
		validate: validate,
	}
}

func (svc *Service) checkUniqueness(uname, email, usn string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), uname, email, usn, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrUSNExists:
			field = "usn"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		USN:       nu.USN,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUSN(ctx context.Context, usn string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{USN: strings.ToUpper(core.CleanString(usn))})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive enables or disables an account.
func (svc *Service) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, data.Token, svc.conf); err != nil {
		return core.NewValidationError(err)
	}
	if err = svc.validate.Var(data.Password, pwdPolicyTag); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "password", Error: pwdPolicyText})
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// BulkCreate creates accounts for a USN range. Rows that cannot be created are collected, not fatal.
func (svc *Service) BulkCreate(ctx context.Context, bc BulkCreate) (BulkResult, error) {
	if err := svc.validate.Var(bc.Password, pwdPolicyTag); err != nil {
		return BulkResult{}, core.NewValidationError(err, core.FieldError{Field: "password", Error: pwdPolicyText})
	}
	res := BulkResult{Created: make([]User, 0), Errors: make([]RowError, 0)}

	// one hash for the whole batch: bcrypt dominates the cost of this loop
	var tmpl User
	if err := tmpl.SetPassword(bc.Password); err != nil {
		return BulkResult{}, errors.Wrap(err, "setting password")
	}

	for i := bc.Start; i <= bc.End; i++ {
		usn := fmt.Sprintf("%s%03d", bc.Prefix, i)
		row := i - bc.Start + 1
		uname := strings.ToLower(usn)
		email := uname + "@student.edu"

		if err := svc.repo.CheckUniqueness(ctx, uname, email, usn, nil); err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Key: usn, Error: errors.Cause(err).Error()})
			continue
		}

		now := NowFunc().UTC()
		usr, err := svc.repo.CreateUser(ctx, User{
			Name:         "Student " + usn,
			Username:     uname,
			USN:          usn,
			Email:        email,
			Role:         bc.Role,
			IsActive:     true,
			PasswordHash: tmpl.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Key: usn, Error: errors.Cause(err).Error()})
			continue
		}
		res.Created = append(res.Created, usr)
	}
	return res, nil
}

// ImportCSV creates one user per CSV record. The header must name the columns
// username, email, name (or fullName) and password; usn, phone and role are optional (role defaults to STUDENT).
func (svc *Service) ImportCSV(ctx context.Context, r io.Reader) (BulkResult, error) {
	rdr := csv.NewReader(r)
	rdr.TrimLeadingSpace = true
	rdr.FieldsPerRecord = -1

	header, err := rdr.Read()
	if err != nil {
		return BulkResult{}, ErrInvalidCSV
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[core.CleanString(h, true /* lower */)] = i
	}
	if _, ok := cols["name"]; !ok {
		if i, ok := cols["fullname"]; ok {
			cols["name"] = i
		}
	}
	for _, c := range []string{"username", "email", "name", "password"} {
		if _, ok := cols[c]; !ok {
			return BulkResult{}, ErrInvalidCSV
		}
	}
	get := func(rec []string, col string) string {
		if i, ok := cols[col]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	res := BulkResult{Created: make([]User, 0), Errors: make([]RowError, 0)}
	for row := 1; ; row++ {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Error: err.Error()})
			continue
		}

		pwd := get(rec, "password")
		nu := NewUser{
			Name:            get(rec, "name"),
			Username:        get(rec, "username"),
			USN:             get(rec, "usn"),
			Email:           get(rec, "email"),
			Phone:           get(rec, "phone"),
			Password:        pwd,
			PasswordConfirm: pwd,
		}
		if roleStr := get(rec, "role"); roleStr != "" {
			role, ok := ParseRole(roleStr)
			if !ok {
				res.Errors = append(res.Errors, RowError{Row: row, Key: nu.Username, Error: "invalid role: " + roleStr})
				continue
			}
			nu.Role = role
		}

		if err := nu.Validate(svc.validate, svc); err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Key: nu.Username, Error: describeValidationErr(err)})
			continue
		}
		usr, err := svc.Create(ctx, nu)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Key: nu.Username, Error: errors.Cause(err).Error()})
			continue
		}
		res.Created = append(res.Created, usr)
	}
	return res, nil
}

func describeValidationErr(err error) string {
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		flds := make([]string, 0, len(e))
		for _, fe := range e {
			flds = append(flds, fe.Field()+" ("+fe.Tag()+")")
		}
		return "invalid fields: " + strings.Join(flds, ", ")
	case *core.ValidationError:
		if len(e.Fields) > 0 {
			return e.Fields[0].Error
		}
		return e.Error()
	}
	return err.Error()
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct {
			Name     string
			Username string
			Role     Role
		}{Name: usr.Name, Username: usr.Username, Role: usr.Role},
	})
}

func (svc *Service) sendPasswordResetMail(usr User) error {
	token, err := makeToken(usr, svc.conf)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{Name: usr.Name, UID: EncodeUID(usr), Token: token},
	})
	return nil
}
