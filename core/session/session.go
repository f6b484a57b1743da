// Package session resolves an authenticated identity into a role and a
// profile, healing missing or stale profile documents along the way.
package session

import (
	"context"
	"sync"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
)

// Role is the closed set of access levels a session can carry.
type Role int

const (
	RoleStudent Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "student"
}

// ParseRole maps a stored role string back to a Role; anything unknown is a
// student.
func ParseRole(s string) Role {
	if s == "admin" {
		return RoleAdmin
	}
	return RoleStudent
}

// Resolution is the outcome of resolving a session.
type Resolution struct {
	Role    Role
	Profile profile.Profile
}

type Resolver struct {
	conf     *core.Config
	profiles profile.Service
	logger   core.Logger

	mu    sync.RWMutex
	cache map[string]Role // uid -> role, dropped on sign-out
}

func NewResolver(conf *core.Config, profiles profile.Service, logger core.Logger) *Resolver {
	return &Resolver{
		conf:     conf,
		profiles: profiles,
		logger:   logger,
		cache:    make(map[string]Role),
	}
}

// Resolve determines the role for ident and makes sure a matching profile
// document exists. It never fails outright: any store trouble degrades the
// session to a student with whatever profile could be read. Admin endpoints
// are gated by a live marker check, not by the role resolved here.
func (rv *Resolver) Resolve(ctx context.Context, ident identity.Identity) Resolution {
	role := rv.resolveRole(ctx, ident)

	prof, err := rv.profiles.Get(ctx, ident.UID)
	switch {
	case err == profile.ErrNotFound:
		prof = rv.defaultProfile(role, ident)
		if err := rv.profiles.Create(ctx, ident.UID, prof); err != nil && err != profile.ErrExists {
			rv.logger.Warn("session: creating profile for "+ident.UID, err)
		}
	case err != nil:
		rv.logger.Warn("session: reading profile for "+ident.UID, err)
		return Resolution{Role: RoleStudent, Profile: rv.defaultProfile(RoleStudent, ident)}
	case role == RoleAdmin && (prof.Semester != profile.AdminSemester || prof.Branch != profile.AdminBranch || !prof.IsAdmin()):
		// heal profiles written before the grant, or drifted since
		if err := rv.profiles.Update(ctx, ident.UID, map[string]interface{}{
			"semester": profile.AdminSemester,
			"branch":   profile.AdminBranch,
			"role":     profile.AdminRole,
		}); err != nil {
			rv.logger.Warn("session: flagging admin profile for "+ident.UID, err)
		} else {
			prof.Semester = profile.AdminSemester
			prof.Branch = profile.AdminBranch
			prof.Role = profile.AdminRole
		}
	}

	return Resolution{Role: role, Profile: prof}
}

// Register applies the registration shortcut: allow-listed emails get the
// admin marker and an admin profile right away, everyone else a student
// profile with the given details.
func (rv *Resolver) Register(ctx context.Context, ident identity.Identity, semester, branch string) (Resolution, error) {
	if rv.conf.IsAdminEmail(ident.Email) {
		if err := rv.profiles.MarkAdmin(ctx, ident.UID); err != nil {
			return Resolution{}, err
		}
		prof := profile.NewAdminProfile(ident.Name, ident.Email)
		if err := rv.profiles.Create(ctx, ident.UID, prof); err != nil && err != profile.ErrExists {
			return Resolution{}, err
		}
		rv.setCached(ident.UID, RoleAdmin)
		return Resolution{Role: RoleAdmin, Profile: prof}, nil
	}

	prof := profile.NewStudentProfile(ident.Name, ident.Email)
	if semester != "" {
		prof.Semester = semester
	}
	if branch != "" {
		prof.Branch = branch
	}
	if err := rv.profiles.Create(ctx, ident.UID, prof); err != nil && err != profile.ErrExists {
		return Resolution{}, err
	}
	rv.setCached(ident.UID, RoleStudent)
	return Resolution{Role: RoleStudent, Profile: prof}, nil
}

// Invalidate drops the cached role for uid; called on sign-out.
func (rv *Resolver) Invalidate(uid string) {
	rv.mu.Lock()
	delete(rv.cache, uid)
	rv.mu.Unlock()
}

func (rv *Resolver) resolveRole(ctx context.Context, ident identity.Identity) Role {
	rv.mu.RLock()
	role, ok := rv.cache[ident.UID]
	rv.mu.RUnlock()
	if ok {
		return role
	}

	isAdmin, err := rv.profiles.IsAdmin(ctx, ident.UID)
	if err != nil {
		// fail open to the lowest privilege, and do not cache the failure
		rv.logger.Warn("session: reading admin marker for "+ident.UID, err)
		return RoleStudent
	}
	role = RoleStudent
	if isAdmin {
		role = RoleAdmin
	}
	rv.setCached(ident.UID, role)
	return role
}

func (rv *Resolver) setCached(uid string, role Role) {
	rv.mu.Lock()
	rv.cache[uid] = role
	rv.mu.Unlock()
}

func (rv *Resolver) defaultProfile(role Role, ident identity.Identity) profile.Profile {
	if role == RoleAdmin {
		return profile.NewAdminProfile(ident.Name, ident.Email)
	}
	return profile.NewStudentProfile(ident.Name, ident.Email)
}
