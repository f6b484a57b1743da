package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/storage/document"
)

// MaxPhotoBytes caps the raw image size accepted for inline profile photos.
// Clients send small re-encoded JPEGs; anything bigger is rejected.
const MaxPhotoBytes = 1 << 20

var (
	// errors
	ErrNotFound         = errors.New("profile not found")
	ErrExists           = errors.New("profile already exists")
	ErrPhotoTooLarge    = errors.New("photo exceeds the maximum allowed size")
	ErrUnsupportedImage = errors.New("unsupported image format")

	errAdminInfoLocked = "administrator semester and branch cannot be changed"
)

type (
	Service interface {
		Get(ctx context.Context, uid string) (Profile, error)
		// Create fails with ErrExists when a profile is already present.
		Create(ctx context.Context, uid string, p Profile) error
		// Update merges only the given fields into an existing profile.
		Update(ctx context.Context, uid string, fields map[string]interface{}) error
		UpdateInfo(ctx context.Context, uid string, up UpdateProfile) (Profile, error)
		SetPhoto(ctx context.Context, uid string, r io.Reader, size int64) error
		IncrementStreak(ctx context.Context, uid string) (int, error)
		SetCompletion(ctx context.Context, uid string, pct int) error
		// MarkAdmin writes the admin marker; it is idempotent and never
		// downgrades an existing marker.
		MarkAdmin(ctx context.Context, uid string) error
		IsAdmin(ctx context.Context, uid string) (bool, error)
	}

	service struct {
		users  document.Collection
		admins document.Collection
	}
)

func NewService(db document.Store) Service {
	return &service{
		users:  db.Collection(document.Users),
		admins: db.Collection(document.Admins),
	}
}

func (svc *service) Get(ctx context.Context, uid string) (Profile, error) {
	doc, err := svc.users.Get(ctx, uid)
	if err != nil {
		if err == document.ErrNotFound {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	var p Profile
	if err := doc.Decode(&p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (svc *service) Create(ctx context.Context, uid string, p Profile) error {
	doc, err := document.Encode(p)
	if err != nil {
		return err
	}
	if err := svc.users.Create(ctx, uid, doc); err != nil {
		if err == document.ErrExists {
			return ErrExists
		}
		return err
	}
	return nil
}

func (svc *service) Update(ctx context.Context, uid string, fields map[string]interface{}) error {
	if err := svc.users.Update(ctx, uid, document.Document(fields)); err != nil {
		if err == document.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (svc *service) UpdateInfo(ctx context.Context, uid string, up UpdateProfile) (Profile, error) {
	current, err := svc.Get(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	if current.IsAdmin() && (up.Semester != current.Semester || up.Branch != current.Branch) {
		return Profile{}, core.NewValidationError(nil,
			core.FieldError{Field: "semester", Error: errAdminInfoLocked},
			core.FieldError{Field: "branch", Error: errAdminInfoLocked},
		)
	}

	if err := svc.Update(ctx, uid, map[string]interface{}{
		"name":     up.Name,
		"email":    up.Email,
		"semester": up.Semester,
		"branch":   up.Branch,
	}); err != nil {
		return Profile{}, err
	}

	current.Name = up.Name
	current.Email = up.Email
	current.Semester = up.Semester
	current.Branch = up.Branch
	return current, nil
}

func (svc *service) SetPhoto(ctx context.Context, uid string, r io.Reader, size int64) error {
	if size > MaxPhotoBytes {
		return ErrPhotoTooLarge
	}
	raw, err := ioutil.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return err
	}
	if len(raw) > MaxPhotoBytes {
		return ErrPhotoTooLarge
	}
	if ct := http.DetectContentType(raw); !strings.HasPrefix(ct, "image/") {
		return ErrUnsupportedImage
	}
	return svc.Update(ctx, uid, map[string]interface{}{
		"photoBase64": base64.StdEncoding.EncodeToString(raw),
	})
}

func (svc *service) IncrementStreak(ctx context.Context, uid string) (int, error) {
	doc, err := svc.users.Get(ctx, uid)
	if err != nil {
		if err == document.ErrNotFound {
			return 0, ErrNotFound
		}
		return 0, err
	}
	streak := doc.GetInt("streak") + 1
	if err := svc.Update(ctx, uid, map[string]interface{}{"streak": streak}); err != nil {
		return 0, err
	}
	return streak, nil
}

func (svc *service) SetCompletion(ctx context.Context, uid string, pct int) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	return svc.Update(ctx, uid, map[string]interface{}{"completion": pct})
}

func (svc *service) MarkAdmin(ctx context.Context, uid string) error {
	// full upsert keeps the call idempotent
	return svc.admins.Set(ctx, uid, document.Document{"active": true, "role": AdminRole})
}

func (svc *service) IsAdmin(ctx context.Context, uid string) (bool, error) {
	// existence of the marker grants the privilege, not its payload
	return svc.admins.Exists(ctx, uid)
}
