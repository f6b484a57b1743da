package material

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bhoidhruv/ddquest/core"
)

// Material is a catalog entry for an uploaded study file, stored in the
// "materials" collection. The json tags are the wire names the clients read.
type Material struct {
	ID         string    `json:"id,omitempty"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	URL        string    `json:"url"`
	FileName   string    `json:"fileName"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// NewMaterial contains the metadata accompanying a file upload.
type NewMaterial struct {
	Title   string `json:"title" validate:"required"`
	Subject string `json:"subject" validate:"required"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Subject = core.CleanString(nm.Subject)
	return validate.Struct(nm)
}
