package main

import (
	"context"

	"github.com/bhoidhruv/ddquest/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	ident, err := cli.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := ident.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.repo.UpdateIdentity(ctx, ident); err != nil {
		return err
	}
	return nil
}
