// Package blob defines binary object storage under a fixed path taxonomy.
// Backend authorization rules key off the path prefixes, so they must be
// preserved exactly.
package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// Path prefixes. Subject directories live under Materials
// (materials/<subject>/<file>); profile pictures are profile_images/<uid>.jpg.
const (
	Materials     = "materials"
	ProfileImages = "profile_images"
	DailyTests    = "daily_tests"
	MockTests     = "mock_tests"
	WeeklyTests   = "weekly_tests"
)

// ProgressFunc receives upload/download progress as a percentage.
// Reported values are monotonically non-decreasing; consumers may ignore it.
type ProgressFunc func(percent float64)

type Store interface {
	// Upload stores size bytes from r at path and returns a download URL.
	// progress may be nil.
	Upload(ctx context.Context, path string, r io.Reader, size int64, progress ProgressFunc) (string, error)
	Download(ctx context.Context, path string, w io.Writer) error
	// DownloadTo writes the blob to localPath and returns the absolute local path.
	DownloadTo(ctx context.Context, path, localPath string) (string, error)
	URL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Size(ctx context.Context, path string) (int64, error)
}

// MaterialPath returns the storage path for a study-material file.
func MaterialPath(fileName string) string {
	return Materials + "/" + fileName
}

// ProfileImagePath returns the storage path for a user's profile picture.
func ProfileImagePath(uid string) string {
	return ProfileImages + "/" + uid + ".jpg"
}
