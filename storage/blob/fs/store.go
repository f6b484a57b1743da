package fsblob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/storage/blob"
)

const copyChunkSize = 32 * 1024

// Store is a filesystem-backed blob.Store rooted at a single directory.
// Download URLs are issued under the configured base URL.
type Store struct {
	root    string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

func Open(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating blob root")
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// localPath resolves path under the root, refusing traversal outside it.
func (s *Store) localPath(path string) (string, error) {
	clean := filepath.Clean("/" + path) // forces the path to be rooted
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", errors.Errorf("invalid blob path %q", path)
	}
	return full, nil
}

func (s *Store) Upload(ctx context.Context, path string, r io.Reader, size int64, progress blob.ProgressFunc) (string, error) {
	full, err := s.localPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrap(err, "creating blob directory")
	}

	// write to a temp file first so a failed upload never leaves a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp blob")
	}
	defer os.Remove(tmp.Name())

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return "", err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				tmp.Close()
				return "", errors.Wrap(werr, "writing blob")
			}
			written += int64(n)
			if progress != nil && size > 0 {
				pct := float64(written) / float64(size) * 100
				if pct > 100 {
					pct = 100
				}
				progress(pct)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close()
			return "", errors.Wrap(rerr, "reading upload content")
		}
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing temp blob")
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", errors.Wrap(err, "finalizing blob")
	}
	if progress != nil {
		progress(100)
	}
	return s.url(path), nil
}

func (s *Store) Download(ctx context.Context, path string, w io.Writer) error {
	full, err := s.localPath(path)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return blob.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "opening blob")
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrap(err, "copying blob")
	}
	return nil
}

func (s *Store) DownloadTo(ctx context.Context, path, localPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", errors.Wrap(err, "creating download directory")
	}
	f, err := os.Create(localPath)
	if err != nil {
		return "", errors.Wrap(err, "creating local file")
	}
	defer f.Close()

	if err := s.Download(ctx, path, f); err != nil {
		os.Remove(localPath)
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return localPath, nil
	}
	return abs, nil
}

func (s *Store) URL(ctx context.Context, path string) (string, error) {
	full, err := s.localPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return "", blob.ErrNotFound
	} else if err != nil {
		return "", errors.Wrap(err, "stat blob")
	}
	return s.url(path), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	full, err := s.localPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); os.IsNotExist(err) {
		return blob.ErrNotFound
	} else if err != nil {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	dir, err := s.localPath(prefix)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing blobs")
	}
	return out, nil
}

func (s *Store) Size(ctx context.Context, path string) (int64, error) {
	full, err := s.localPath(path)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(full)
	if os.IsNotExist(err) {
		return 0, blob.ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "stat blob")
	}
	return fi.Size(), nil
}

func (s *Store) url(path string) string {
	return s.baseURL + "/" + path
}
