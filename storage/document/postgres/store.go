package pgdoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/storage/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection text  NOT NULL,
    id         text  NOT NULL,
    data       jsonb NOT NULL DEFAULT '{}'::jsonb,
    PRIMARY KEY (collection, id)
);
`

// Store is a postgres-backed document.Store. All collections share one
// documents table keyed by (collection, id) with a jsonb payload.
type Store struct {
	db *sqlx.DB
}

var _ document.Store = (*Store)(nil)

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sqlx.Open(conf.Database.Engine, u.String())
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Open connects to the configured database and ensures the documents table exists.
func Open(conf *core.Config) (*Store, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := ping(db); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "ensuring documents table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Collection(name string) document.Collection {
	return &collection{db: s.db, name: name}
}

type collection struct {
	db   *sqlx.DB
	name string
}

var _ document.Collection = (*collection)(nil)

func (c *collection) Get(ctx context.Context, id string) (document.Document, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting document")
	}

	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

func (c *collection) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		c.name, id,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "checking document existence")
	}
	return exists, nil
}

func (c *collection) Create(ctx context.Context, id string, fields document.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		c.name, id, raw,
	)
	if err != nil {
		return errors.Wrap(err, "creating document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "creating document")
	}
	if n == 0 {
		return document.ErrExists
	}
	return nil
}

func (c *collection) Set(ctx context.Context, id string, fields document.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		c.name, id, raw,
	)
	return errors.Wrap(err, "setting document")
}

func (c *collection) Update(ctx context.Context, id string, partial document.Document) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return errors.Wrap(err, "encoding partial document")
	}
	// jsonb || merges top-level fields, leaving the others untouched
	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
		c.name, id, raw,
	)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (c *collection) Add(ctx context.Context, fields document.Document) (string, error) {
	id := uuid.New().String()
	if err := c.Create(ctx, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (c *collection) Query(ctx context.Context, filters ...document.Filter) ([]document.Keyed, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []interface{}{c.name}

	if len(filters) > 0 {
		match := make(document.Document, len(filters))
		for _, f := range filters {
			match[f.Field] = f.Value
		}
		raw, err := json.Marshal(match)
		if err != nil {
			return nil, errors.Wrap(err, "encoding query filters")
		}
		query += ` AND data @> $2::jsonb`
		args = append(args, raw)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}
	defer rows.Close()

	var out []document.Keyed
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "scanning document row")
		}
		var doc document.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(err, "decoding document")
		}
		out = append(out, document.Keyed{ID: id, Doc: doc})
	}
	return out, rows.Err()
}
