package main

import (
	"context"

	"github.com/trezcool/tutorconnect/core/user"
)

// createAdmin applies the signup password rules to admins too.
func (cli *commandLine) createAdmin(name, email, pwd string) error {
	nu := user.NewUser{FullName: name, Email: email, Password: pwd, Role: user.RoleAdmin}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	logger.Info("admin created", "user_id", usr.ID)
	return nil
}
