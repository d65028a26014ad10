package main

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/coachdesk/backend/core"
	"github.com/coachdesk/backend/core/user"
)

// addMentor updates or creates a mentor account.
func (cli *commandLine) addMentor(uname, email, pwd string, senior bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	role := user.RoleGroupMentor
	if senior {
		role = user.RoleSeniorMentor
	}
	active := true
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if pkgerrors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:      uname,
			Username:  uname,
			Email:     email,
			IsActive:  &active,
			Roles:     []string{role},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	usr.Email = email
	usr.IsActive = &active
	usr.Roles = []string{role}
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
