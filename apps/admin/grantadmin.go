package main

import (
	"context"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/profile"
)

// grantAdmin writes the admin marker and reshapes the profile; any session
// cached as student is invalidated so the grant takes effect on next login.
func (cli *commandLine) grantAdmin(email string) error {
	ctx := context.Background()
	ident, err := cli.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	if err := cli.profiles.MarkAdmin(ctx, ident.UID); err != nil {
		return err
	}
	if err := cli.profiles.Update(ctx, ident.UID, map[string]interface{}{
		"semester": profile.AdminSemester,
		"branch":   profile.AdminBranch,
		"role":     profile.AdminRole,
	}); err != nil && err != profile.ErrNotFound {
		return err
	}

	cli.resolver.Invalidate(ident.UID)
	return nil
}
