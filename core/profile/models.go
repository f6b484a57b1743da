package profile

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bhoidhruv/ddquest/core"
)

// Field values carried by the mobile clients; they render these strings
// verbatim and must not change.
const (
	NotSet        = "Not Set"
	AdminSemester = "Admin"
	AdminBranch   = "Admin"
	AdminRole     = "admin"
)

// Profile is the public face of a user, stored in the "users" collection.
// The json tags are the wire names the clients read; they must not change.
type Profile struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Semester    string    `json:"semester"`
	Branch      string    `json:"branch"`
	Streak      int       `json:"streak"`
	Completion  int       `json:"completion"`
	PhotoBase64 string    `json:"photoBase64,omitempty"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p Profile) IsAdmin() bool { return p.Role == AdminRole }

// NewStudentProfile returns the default profile written on a student's first
// sign-in when no profile details are known yet.
func NewStudentProfile(name, email string) Profile {
	return Profile{
		Name:      name,
		Email:     email,
		Semester:  NotSet,
		Branch:    NotSet,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAdminProfile returns the profile written for an administrator account.
func NewAdminProfile(name, email string) Profile {
	return Profile{
		Name:      name,
		Email:     email,
		Semester:  AdminSemester,
		Branch:    AdminBranch,
		Role:      AdminRole,
		CreatedAt: time.Now().UTC(),
	}
}

// UpdateProfile contains the profile fields a user may edit.
type UpdateProfile struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Semester string `json:"semester" validate:"required"`
	Branch   string `json:"branch" validate:"required"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.Email = core.CleanString(up.Email, true /* lower */)
	up.Semester = core.CleanString(up.Semester)
	up.Branch = core.CleanString(up.Branch)
	return validate.Struct(up)
}
