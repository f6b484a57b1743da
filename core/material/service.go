package material

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/storage/blob"
	"github.com/bhoidhruv/ddquest/storage/document"
)

var (
	// errors
	ErrNotFound = errors.New("material not found")
)

type (
	Service interface {
		// Upload stores the file first and catalogs it second: a failed
		// upload must leave no catalog entry behind.
		Upload(ctx context.Context, nm NewMaterial, uploadedBy string, r io.Reader, size int64, progress blob.ProgressFunc) (Material, error)
		List(ctx context.Context) ([]Material, error)
		BySubject(ctx context.Context, subject string) ([]Material, error)
		Get(ctx context.Context, id string) (Material, error)
		Download(ctx context.Context, fileName string, w io.Writer) error
		DownloadTo(ctx context.Context, fileName, localPath string) (string, error)
		URL(ctx context.Context, fileName string) (string, error)
		// Delete removes the catalog entry and then the backing file.
		Delete(ctx context.Context, id string) error
		UploadProfileImage(ctx context.Context, uid string, r io.Reader, size int64) (string, error)
	}

	service struct {
		catalog document.Collection
		blobs   blob.Store
		logger  core.Logger

		nowFunc func() time.Time // mockable; names uploaded files
	}
)

func NewService(db document.Store, blobs blob.Store, logger core.Logger) Service {
	return &service{
		catalog: db.Collection(document.Materials),
		blobs:   blobs,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (svc *service) Upload(ctx context.Context, nm NewMaterial, uploadedBy string, r io.Reader, size int64, progress blob.ProgressFunc) (Material, error) {
	fileName := fmt.Sprintf("%d.pdf", svc.nowFunc().UnixNano()/int64(time.Millisecond))
	path := blob.MaterialPath(fileName)

	url, err := svc.blobs.Upload(ctx, path, r, size, progress)
	if err != nil {
		return Material{}, err
	}

	mat := Material{
		Title:      nm.Title,
		Subject:    nm.Subject,
		URL:        url,
		FileName:   fileName,
		UploadedBy: uploadedBy,
		UploadedAt: svc.nowFunc().UTC(),
	}
	doc, err := document.Encode(mat)
	if err != nil {
		return Material{}, err
	}
	delete(doc, "id")

	id, err := svc.catalog.Add(ctx, doc)
	if err != nil {
		// best effort: do not leave an uncataloged file behind
		if delErr := svc.blobs.Delete(ctx, path); delErr != nil {
			svc.logger.Warn("material: removing orphaned blob "+path, delErr)
		}
		return Material{}, err
	}
	mat.ID = id
	return mat, nil
}

func (svc *service) List(ctx context.Context) ([]Material, error) {
	return svc.query(ctx)
}

func (svc *service) BySubject(ctx context.Context, subject string) ([]Material, error) {
	return svc.query(ctx, document.Filter{Field: "subject", Value: subject})
}

func (svc *service) Get(ctx context.Context, id string) (Material, error) {
	doc, err := svc.catalog.Get(ctx, id)
	if err != nil {
		if err == document.ErrNotFound {
			return Material{}, ErrNotFound
		}
		return Material{}, err
	}
	return decodeMaterial(id, doc)
}

func (svc *service) Download(ctx context.Context, fileName string, w io.Writer) error {
	return svc.blobs.Download(ctx, blob.MaterialPath(fileName), w)
}

func (svc *service) DownloadTo(ctx context.Context, fileName, localPath string) (string, error) {
	return svc.blobs.DownloadTo(ctx, blob.MaterialPath(fileName), localPath)
}

func (svc *service) URL(ctx context.Context, fileName string) (string, error) {
	return svc.blobs.URL(ctx, blob.MaterialPath(fileName))
}

func (svc *service) Delete(ctx context.Context, id string) error {
	mat, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.catalog.Delete(ctx, id); err != nil {
		if err == document.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	if err := svc.blobs.Delete(ctx, blob.MaterialPath(mat.FileName)); err != nil && err != blob.ErrNotFound {
		svc.logger.Warn("material: removing blob for "+id, err)
	}
	return nil
}

func (svc *service) UploadProfileImage(ctx context.Context, uid string, r io.Reader, size int64) (string, error) {
	return svc.blobs.Upload(ctx, blob.ProfileImagePath(uid), r, size, nil)
}

func (svc *service) query(ctx context.Context, filters ...document.Filter) ([]Material, error) {
	res, err := svc.catalog.Query(ctx, filters...)
	if err != nil {
		return nil, err
	}
	mats := make([]Material, 0, len(res))
	for _, kd := range res {
		mat, err := decodeMaterial(kd.ID, kd.Doc)
		if err != nil {
			svc.logger.Warn("material: decoding "+kd.ID, err)
			continue
		}
		mats = append(mats, mat)
	}
	// newest first
	sort.Slice(mats, func(i, j int) bool { return mats[i].UploadedAt.After(mats[j].UploadedAt) })
	return mats, nil
}

func decodeMaterial(id string, doc document.Document) (Material, error) {
	var mat Material
	if err := doc.Decode(&mat); err != nil {
		return Material{}, err
	}
	mat.ID = id
	return mat, nil
}
