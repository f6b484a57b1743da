package main

import (
	"context"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
)

// createIdentity updates or creates an account. Operator-created accounts
// are verified right away; nobody is waiting on a link.
func (cli *commandLine) createIdentity(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	ident, err := cli.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if err != identity.ErrNotFound {
			return err
		}
		ident = identity.Identity{
			Name:  name,
			Email: email,
		}
	}
	ident.Name = name
	ident.EmailVerified = true
	if err := ident.SetPassword(pwd); err != nil {
		return err
	}

	if ident.UID == "" {
		if ident, err = cli.repo.CreateIdentity(ctx, ident); err != nil {
			return err
		}
	} else if ident, err = cli.repo.UpdateIdentity(ctx, ident); err != nil {
		return err
	}

	if _, err := cli.resolver.Register(ctx, ident, "", ""); err != nil {
		return err
	}
	if isAdmin {
		return cli.grantAdmin(email)
	}
	return nil
}
