package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

// addUser updates or creates an active user with the given role.
func (cli *commandLine) addUser(ctx context.Context, uname, email, name, pwd string, role user.Role) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}
	now := user.NowFunc().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	isNew := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		isNew = true
		usr = user.User{Username: uname, CreatedAt: now}
	}
	usr.Name = name
	usr.Email = email
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if isNew {
		if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, "", nil); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s %q (id %d)\n", usr.Role, usr.Username, usr.ID)
		return nil
	}

	if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, usr.USN, []user.User{usr}); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated %s %q (id %d)\n", usr.Role, usr.Username, usr.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = user.NowFunc().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}

func (cli *commandLine) importUsers(ctx context.Context, r io.Reader) error {
	res, err := cli.usrSvc.ImportCSV(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %d user(s)\n", len(res.Created))
	for _, re := range res.Errors {
		fmt.Fprintf(cli.out, "row %d (%s): %s\n", re.Row, re.Key, re.Error)
	}
	return nil
}
