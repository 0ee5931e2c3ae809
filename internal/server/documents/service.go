// Package documents implements the uniform CRUD dispatcher: every request
// resolves its collection through the registry, then runs against that
// collection's repository. Deletion cascades hosted image assets.
package documents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/dbx"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
	"github.com/dmitrijs2005/sitekeeper/internal/server/registry"
	docrepo "github.com/dmitrijs2005/sitekeeper/internal/server/repositories/documents"
)

// AssetHost is the asset-side contract the dispatcher needs: recognize its
// own URLs, upload new payloads and delete old ones.
type AssetHost interface {
	Managed(url string) bool
	Upload(ctx context.Context, data []byte, contentType, folder string) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// repoFactory is a seam for tests; production code builds Postgres repos.
type repoFactory func(db dbx.DBTX, table string) docrepo.Repository

// Service is the CRUD dispatcher over all collections.
type Service struct {
	db       *sql.DB
	registry *registry.Registry
	assets   AssetHost
	logger   logging.Logger
	newRepo  repoFactory
}

// NewService wires the dispatcher.
func NewService(db *sql.DB, reg *registry.Registry, assets AssetHost, logger logging.Logger) *Service {
	return &Service{
		db:       db,
		registry: reg,
		assets:   assets,
		logger:   logger,
		newRepo: func(db dbx.DBTX, table string) docrepo.Repository {
			return docrepo.NewPostgresRepository(db, table)
		},
	}
}

func (s *Service) repo(db dbx.DBTX, c *registry.Collection) docrepo.Repository {
	return s.newRepo(db, c.Table)
}

// List returns a collection's documents under its fixed sort policy:
// catalog-ordered collections oldest first, everything else newest first.
func (s *Service) List(ctx context.Context, name string) ([]models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.repo(s.db, c).List(ctx, c.SortAscending)
}

// Get returns one document by application id.
func (s *Service) Get(ctx context.Context, name, id string) (models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.repo(s.db, c).GetByID(ctx, id)
}

func validateRequired(c *registry.Collection, doc models.Document) error {
	for _, f := range c.Required {
		if _, ok := doc.StringField(f); !ok {
			return fmt.Errorf("%w: missing field %q", common.ErrValidation, f)
		}
	}
	return nil
}

// PublicCreate reports whether unauthenticated visitors may create documents
// in the named collection (contact messages, job applications).
func (s *Service) PublicCreate(name string) bool {
	c, err := s.registry.Resolve(name)
	return err == nil && c.PublicCreate
}

// Create stores a new document. The application id is client-assigned and
// required; collection-specific required fields must be present.
func (s *Service) Create(ctx context.Context, name string, doc models.Document) (models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if doc.ID() == "" {
		if !c.Singleton {
			return nil, fmt.Errorf("%w: missing field %q", common.ErrValidation, models.FieldID)
		}
		doc = doc.Clone()
		doc[models.FieldID] = c.Name
	}
	if err := validateRequired(c, doc); err != nil {
		return nil, err
	}
	return s.repo(s.db, c).Create(ctx, doc)
}

// ReplaceByID fully replaces one document, leaving the rest of the
// collection untouched. Applying the same payload twice yields the same
// stored entity.
func (s *Service) ReplaceByID(ctx context.Context, name, id string, doc models.Document) (models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.repo(s.db, c).ReplaceByID(ctx, id, doc)
}

// ReplaceAll clears the collection and inserts every given document,
// preserving payload order, in a single transaction. Rows are spaced one
// microsecond apart so the collection's fixed list order reproduces the
// payload order.
func (s *Service) ReplaceAll(ctx context.Context, name string, docs []models.Document) ([]models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.ID() == "" {
			return nil, fmt.Errorf("%w: missing field %q", common.ErrValidation, models.FieldID)
		}
	}

	stored := make([]models.Document, 0, len(docs))
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx, c)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		base := time.Now().UTC()
		n := len(docs)
		for i, doc := range docs {
			offset := i
			if !c.SortAscending {
				offset = n - 1 - i
			}
			row, err := repo.CreateWithTime(ctx, doc, base.Add(time.Duration(offset)*time.Microsecond))
			if err != nil {
				return err
			}
			stored = append(stored, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ReplaceSingleton clears the collection and inserts exactly one document,
// in a single transaction. Singleton collections default the id to the
// collection name when the payload carries none.
func (s *Service) ReplaceSingleton(ctx context.Context, name string, doc models.Document) (models.Document, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if doc.ID() == "" {
		doc = doc.Clone()
		doc[models.FieldID] = c.Name
	}

	var stored models.Document
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx, c)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		stored, err = repo.Create(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes one document after attempting to delete every hosted image
// asset it references. Asset deletions are best effort: failures are logged
// and the record delete proceeds regardless.
func (s *Service) Delete(ctx context.Context, name, id string) error {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return err
	}
	repo := s.repo(s.db, c)

	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, url := range s.assetURLs(c, doc) {
		if err := s.assets.DeleteByURL(ctx, url); err != nil {
			s.logger.Warn(ctx, "asset delete failed", "collection", name, "id", id, "url", url, "error", err.Error())
		}
	}

	return repo.DeleteByID(ctx, id)
}

// assetURLs collects the hosted-asset URLs of a document: every image field
// plus every gallery element, filtered to URLs the adapter recognizes as its
// own. Foreign URLs never reach the delete operation.
func (s *Service) assetURLs(c *registry.Collection, doc models.Document) []string {
	var urls []string
	for _, field := range c.ImageFields {
		if v, ok := doc.StringField(field); ok && s.assets.Managed(v) {
			urls = append(urls, v)
		}
	}
	if c.GalleryField != "" {
		for _, v := range doc.StringSlice(c.GalleryField) {
			if s.assets.Managed(v) {
				urls = append(urls, v)
			}
		}
	}
	return urls
}

// AppendComment appends one comment to a video. The creation time is
// assigned here; comments are never edited or individually deleted.
func (s *Service) AppendComment(ctx context.Context, name, id string, comment models.Comment) (models.Comment, error) {
	c, err := s.registry.Resolve(name)
	if err != nil {
		return models.Comment{}, err
	}
	if !c.HasComments {
		return models.Comment{}, fmt.Errorf("%w: collection %q has no comments", common.ErrValidation, name)
	}
	if comment.Author == "" || comment.Text == "" {
		return models.Comment{}, fmt.Errorf("%w: comment needs author and text", common.ErrValidation)
	}
	comment.CreatedAt = time.Now().UTC()

	if err := s.repo(s.db, c).AppendComment(ctx, id, comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// UploadAsset stores a binary payload on the asset host and returns its URL.
func (s *Service) UploadAsset(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	return s.assets.Upload(ctx, data, contentType, folder)
}
