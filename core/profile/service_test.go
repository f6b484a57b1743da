package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/storage/document"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
)

func TestServiceCreateGetUpdate(t *testing.T) {
	svc := NewService(inmemdoc.Open())
	ctx := context.Background()

	p := NewStudentProfile("Test User", "user@test.test")
	if p.Semester != NotSet || p.Branch != NotSet {
		t.Fatalf("NewStudentProfile() semester/branch = %q/%q, want %q", p.Semester, p.Branch, NotSet)
	}
	if err := svc.Create(ctx, "uid-1", p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Create(ctx, "uid-1", p); err != ErrExists {
		t.Errorf("Create() twice error = %v, want %v", err, ErrExists)
	}

	got, err := svc.Get(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Test User" || got.Email != "user@test.test" {
		t.Errorf("Get() = %+v", got)
	}

	if _, err = svc.Get(ctx, "ghost"); err != ErrNotFound {
		t.Errorf("Get() unknown error = %v, want %v", err, ErrNotFound)
	}

	// partial update merges, other fields survive
	if err = svc.Update(ctx, "uid-1", map[string]interface{}{"semester": "3"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = svc.Get(ctx, "uid-1")
	if got.Semester != "3" || got.Branch != NotSet {
		t.Errorf("Update() merge broke fields: %+v", got)
	}

	if err = svc.Update(ctx, "ghost", map[string]interface{}{"semester": "3"}); err != ErrNotFound {
		t.Errorf("Update() unknown error = %v, want %v", err, ErrNotFound)
	}
}

func TestServiceUpdateInfo(t *testing.T) {
	svc := NewService(inmemdoc.Open())
	ctx := context.Background()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	_ = svc.Create(ctx, "stu", NewStudentProfile("Stu", "stu@test.test"))
	_ = svc.Create(ctx, "adm", NewAdminProfile("Adm", "adm@test.test"))

	up := UpdateProfile{Name: "  Stu Dent ", Email: "STU@test.test", Semester: "5", Branch: "CS"}
	if err := up.Validate(validate); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if up.Name != "Stu Dent" || up.Email != "stu@test.test" {
		t.Errorf("Validate() did not clean fields: %+v", up)
	}

	p, err := svc.UpdateInfo(ctx, "stu", up)
	if err != nil {
		t.Fatalf("UpdateInfo() error = %v", err)
	}
	if p.Semester != "5" || p.Branch != "CS" {
		t.Errorf("UpdateInfo() = %+v", p)
	}

	// admins cannot change their semester or branch
	_, err = svc.UpdateInfo(ctx, "adm", UpdateProfile{Name: "Adm", Email: "adm@test.test", Semester: "1", Branch: "CS"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("UpdateInfo() admin error = %v, want *core.ValidationError", err)
	}

	// same values are fine
	if _, err = svc.UpdateInfo(ctx, "adm", UpdateProfile{Name: "Renamed", Email: "adm@test.test", Semester: AdminSemester, Branch: AdminBranch}); err != nil {
		t.Errorf("UpdateInfo() admin rename error = %v", err)
	}
}

func TestServiceSetPhoto(t *testing.T) {
	svc := NewService(inmemdoc.Open())
	ctx := context.Background()
	_ = svc.Create(ctx, "uid-1", NewStudentProfile("T", "t@test.test"))

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	if err := svc.SetPhoto(ctx, "uid-1", bytes.NewReader(raw), int64(len(raw))); err != nil {
		t.Fatalf("SetPhoto() error = %v", err)
	}
	p, _ := svc.Get(ctx, "uid-1")
	if p.PhotoBase64 != base64.StdEncoding.EncodeToString(raw) {
		t.Error("SetPhoto() stored unexpected payload")
	}

	if err := svc.SetPhoto(ctx, "uid-1", bytes.NewReader(raw), MaxPhotoBytes+1); err != ErrPhotoTooLarge {
		t.Errorf("SetPhoto() oversize error = %v, want %v", err, ErrPhotoTooLarge)
	}
	if err := svc.SetPhoto(ctx, "uid-1", bytes.NewReader([]byte("just text, no image")), 19); err != ErrUnsupportedImage {
		t.Errorf("SetPhoto() non-image error = %v, want %v", err, ErrUnsupportedImage)
	}
}

func TestServiceStreakAndCompletion(t *testing.T) {
	db := inmemdoc.Open()
	svc := NewService(db)
	ctx := context.Background()
	_ = svc.Create(ctx, "uid-1", NewStudentProfile("T", "t@test.test"))

	for want := 1; want <= 3; want++ {
		got, err := svc.IncrementStreak(ctx, "uid-1")
		if err != nil {
			t.Fatalf("IncrementStreak() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementStreak() = %d, want %d", got, want)
		}
	}

	// a jsonb read hands numbers back as float64
	_ = db.Collection(document.Users).Update(ctx, "uid-1", document.Document{"streak": float64(7)})
	if got, err := svc.IncrementStreak(ctx, "uid-1"); err != nil || got != 8 {
		t.Errorf("IncrementStreak() on float64 streak = %d, %v; want 8, nil", got, err)
	}

	if _, err := svc.IncrementStreak(ctx, "nobody"); err != ErrNotFound {
		t.Errorf("IncrementStreak() unknown uid error = %v, want %v", err, ErrNotFound)
	}

	if err := svc.SetCompletion(ctx, "uid-1", 150); err != nil {
		t.Fatalf("SetCompletion() error = %v", err)
	}
	p, _ := svc.Get(ctx, "uid-1")
	if p.Completion != 100 {
		t.Errorf("SetCompletion() clamped = %d, want 100", p.Completion)
	}
}

func TestServiceAdminMarker(t *testing.T) {
	svc := NewService(inmemdoc.Open())
	ctx := context.Background()

	ok, err := svc.IsAdmin(ctx, "uid-1")
	if err != nil || ok {
		t.Fatalf("IsAdmin() = %v, %v; want false, nil", ok, err)
	}

	if err = svc.MarkAdmin(ctx, "uid-1"); err != nil {
		t.Fatalf("MarkAdmin() error = %v", err)
	}
	// idempotent
	if err = svc.MarkAdmin(ctx, "uid-1"); err != nil {
		t.Fatalf("MarkAdmin() twice error = %v", err)
	}

	ok, err = svc.IsAdmin(ctx, "uid-1")
	if err != nil || !ok {
		t.Errorf("IsAdmin() = %v, %v; want true, nil", ok, err)
	}
}
