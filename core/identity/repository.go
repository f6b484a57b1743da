package identity

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/bhoidhruv/ddquest/storage/document"
)

// docRepository persists identities in the "identities" collection of a
// document store. Password hashes are stored base64-encoded and never travel
// through the Identity's JSON representation.
type docRepository struct {
	col document.Collection
}

func NewRepository(db document.Store) Repository {
	return &docRepository{col: db.Collection(document.Identities)}
}

func (repo *docRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	res, err := repo.col.Query(ctx, document.Filter{Field: "email", Value: email})
	if err != nil {
		return err
	}
	if len(res) > 0 {
		return ErrEmailExists
	}
	return nil
}

func (repo *docRepository) CreateIdentity(ctx context.Context, ident Identity) (Identity, error) {
	if ident.UID == "" {
		ident.UID = uuid.New().String()
	}
	if err := repo.col.Create(ctx, ident.UID, encodeIdentity(ident)); err != nil {
		if err == document.ErrExists {
			return Identity{}, ErrEmailExists
		}
		return Identity{}, err
	}
	return ident, nil
}

func (repo *docRepository) GetIdentityByUID(ctx context.Context, uid string) (Identity, error) {
	doc, err := repo.col.Get(ctx, uid)
	if err != nil {
		if err == document.ErrNotFound {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return decodeIdentity(uid, doc), nil
}

func (repo *docRepository) GetIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	res, err := repo.col.Query(ctx, document.Filter{Field: "email", Value: email})
	if err != nil {
		return Identity{}, err
	}
	if len(res) == 0 {
		return Identity{}, ErrNotFound
	}
	return decodeIdentity(res[0].ID, res[0].Doc), nil
}

func (repo *docRepository) UpdateIdentity(ctx context.Context, ident Identity) (Identity, error) {
	if err := repo.col.Update(ctx, ident.UID, encodeIdentity(ident)); err != nil {
		if err == document.ErrNotFound {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return ident, nil
}

func encodeIdentity(ident Identity) document.Document {
	doc := document.Document{
		"name":           ident.Name,
		"email":          ident.Email,
		"email_verified": ident.EmailVerified,
		"password_hash":  base64.StdEncoding.EncodeToString(ident.PasswordHash),
		"created_at":     ident.CreatedAt.Format(time.RFC3339Nano),
	}
	if !ident.LastLogin.IsZero() {
		doc["last_login"] = ident.LastLogin.Format(time.RFC3339Nano)
	}
	return doc
}

func decodeIdentity(uid string, doc document.Document) Identity {
	ident := Identity{
		UID:       uid,
		Name:      doc.GetString("name"),
		Email:     doc.GetString("email"),
		CreatedAt: parseTime(doc.GetString("created_at")),
		LastLogin: parseTime(doc.GetString("last_login")),
	}
	if v, ok := doc["email_verified"].(bool); ok {
		ident.EmailVerified = v
	}
	if hash, err := base64.StdEncoding.DecodeString(doc.GetString("password_hash")); err == nil && len(hash) > 0 {
		ident.PasswordHash = hash
	}
	return ident
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
