package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/dbx"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
	"github.com/dmitrijs2005/sitekeeper/internal/server/registry"
	docrepo "github.com/dmitrijs2005/sitekeeper/internal/server/repositories/documents"
)

const managedPrefix = "https://assets.local/sitekeeper/v1/"

// ---- fakes ----

type storedDoc struct {
	doc models.Document
	at  time.Time
}

type fakeRepo struct {
	rows map[string]storedDoc
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]storedDoc{}}
}

func (f *fakeRepo) List(ctx context.Context, ascending bool) ([]models.Document, error) {
	all := make([]storedDoc, 0, len(f.rows))
	for _, r := range f.rows {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if ascending {
			return all[i].at.Before(all[j].at)
		}
		return all[i].at.After(all[j].at)
	})
	out := make([]models.Document, 0, len(all))
	for _, r := range all {
		out = append(out, r.doc)
	}
	return out, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (models.Document, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrEntityNotFound
	}
	return r.doc, nil
}

func (f *fakeRepo) Create(ctx context.Context, doc models.Document) (models.Document, error) {
	return f.CreateWithTime(ctx, doc, time.Now().UTC())
}

func (f *fakeRepo) CreateWithTime(ctx context.Context, doc models.Document, at time.Time) (models.Document, error) {
	if _, ok := f.rows[doc.ID()]; ok {
		return nil, common.ErrDuplicateID
	}
	f.rows[doc.ID()] = storedDoc{doc: doc.Clone(), at: at}
	return doc, nil
}

func (f *fakeRepo) ReplaceByID(ctx context.Context, id string, doc models.Document) (models.Document, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrEntityNotFound
	}
	replaced := doc.Clone()
	replaced[models.FieldID] = id
	f.rows[id] = storedDoc{doc: replaced, at: r.at}
	return replaced, nil
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return common.ErrEntityNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRepo) DeleteAll(ctx context.Context) error {
	f.rows = map[string]storedDoc{}
	return nil
}

func (f *fakeRepo) AppendComment(ctx context.Context, id string, c models.Comment) error {
	if _, ok := f.rows[id]; !ok {
		return common.ErrEntityNotFound
	}
	return nil
}

type fakeAssets struct {
	deleted   []string
	uploaded  int
	deleteErr map[string]error
}

func (f *fakeAssets) Managed(url string) bool {
	return len(url) > len(managedPrefix) && url[:len(managedPrefix)] == managedPrefix
}

func (f *fakeAssets) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	f.uploaded++
	return fmt.Sprintf("%s%s/u%d", managedPrefix, folder, f.uploaded), nil
}

func (f *fakeAssets) DeleteByURL(ctx context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	if err, ok := f.deleteErr[url]; ok {
		return err
	}
	return nil
}

// ---- setup ----

type fixture struct {
	svc    *Service
	assets *fakeAssets
	repos  map[string]*fakeRepo
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assets := &fakeAssets{deleteErr: map[string]error{}}
	f := &fixture{assets: assets, repos: map[string]*fakeRepo{}, mock: mock}

	svc := NewService(db, registry.New(), assets, logging.NewDefault())
	svc.newRepo = func(_ dbx.DBTX, table string) docrepo.Repository {
		r, ok := f.repos[table]
		if !ok {
			r = newFakeRepo()
			f.repos[table] = r
		}
		return r
	}
	f.svc = svc
	return f
}

func (f *fixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

// ---- tests ----

func TestList_UnknownCollection(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), "unknown")
	require.True(t, errors.Is(err, common.ErrCollectionNotFound))
}

func TestCreate_RequiresClientAssignedID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "projects", models.Document{"title": "Demo"})
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestCreate_RequiredFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "messages", models.Document{
		"id": "m1", "name": "Ann", "email": "ann@example.com",
	})
	require.True(t, errors.Is(err, common.ErrValidation), "missing message field")

	doc, err := f.svc.Create(context.Background(), "messages", models.Document{
		"id": "m1", "name": "Ann", "email": "ann@example.com", "message": "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "m1", doc.ID())
}

func TestPublicCreate_VisitorCollectionsOnly(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.svc.PublicCreate("messages"))
	require.True(t, f.svc.PublicCreate("careerApplications"))
	require.False(t, f.svc.PublicCreate("projects"))
	require.False(t, f.svc.PublicCreate("unknown"))
}

func TestRoundTrip_CreateGetDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, "jobs", models.Document{"id": "j1", "title": "Welder"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "jobs", "j1")
	require.NoError(t, err)
	require.Equal(t, created["title"], got["title"])

	require.NoError(t, f.svc.Delete(ctx, "jobs", "j1"))

	_, err = f.svc.Get(ctx, "jobs", "j1")
	require.True(t, errors.Is(err, common.ErrEntityNotFound))
}

func TestDelete_CascadeCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img := managedPrefix + "proj/p1"
	thumb := managedPrefix + "proj/p1-t"
	g1 := managedPrefix + "proj/p1-g1"
	g2 := managedPrefix + "proj/p1-g2"

	_, err := f.svc.Create(ctx, "projects", models.Document{
		"id": "p1", "title": "Demo",
		"image": img, "thumbnail": thumb,
		"gallery": []any{g1, g2},
	})
	require.NoError(t, err)

	// one asset delete fails; entity deletion must still succeed
	f.assets.deleteErr[g1] = errors.New("503")

	require.NoError(t, f.svc.Delete(ctx, "projects", "p1"))
	require.ElementsMatch(t, []string{img, thumb, g1, g2}, f.assets.deleted)

	_, err = f.svc.Get(ctx, "projects", "p1")
	require.True(t, errors.Is(err, common.ErrEntityNotFound))
}

func TestDelete_ForeignURLsNeverSentToAssetHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "projects", models.Document{
		"id": "p2", "title": "Stock",
		"image":   "https://images.stock.example/photo.jpg",
		"gallery": []any{"https://cdn.elsewhere.example/a.png"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "projects", "p2"))
	require.Empty(t, f.assets.deleted)
}

func TestDelete_MissingEntity(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(context.Background(), "projects", "missing")
	require.True(t, errors.Is(err, common.ErrEntityNotFound))
	require.Empty(t, f.assets.deleted)
}

func TestReplaceAll_ShapeAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// seed 16 records
	for i := 0; i < 16; i++ {
		_, err := f.svc.Create(ctx, "buildOptions", models.Document{
			"id": fmt.Sprintf("o%d", i), "title": fmt.Sprintf("Option %d", i),
		})
		require.NoError(t, err)
	}

	payload := make([]models.Document, 0, 5)
	for i := 0; i < 5; i++ {
		payload = append(payload, models.Document{
			"id": fmt.Sprintf("n%d", i), "title": fmt.Sprintf("New %d", i),
		})
	}

	f.expectTx()
	stored, err := f.svc.ReplaceAll(ctx, "buildOptions", payload)
	require.NoError(t, err)
	require.Len(t, stored, 5)

	listed, err := f.svc.List(ctx, "buildOptions")
	require.NoError(t, err)
	require.Len(t, listed, 5, "bulk replace must leave exactly the payload's records")
	for i, doc := range listed {
		require.Equal(t, fmt.Sprintf("n%d", i), doc.ID(), "catalog order must match payload order")
	}
}

func TestReplaceAll_PayloadOrderOnNewestFirstCollections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload := []models.Document{
		{"id": "a", "title": "A"},
		{"id": "b", "title": "B"},
		{"id": "c", "title": "C"},
	}

	f.expectTx()
	_, err := f.svc.ReplaceAll(ctx, "projects", payload)
	require.NoError(t, err)

	listed, err := f.svc.List(ctx, "projects")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, doc := range listed {
		require.Equal(t, payload[i].ID(), doc.ID())
	}
}

func TestReplaceAll_RejectsDocWithoutID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReplaceAll(context.Background(), "projects", []models.Document{{"title": "no id"}})
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestReplaceSingleton_PromotionDefaultsConstantID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expectTx()
	_, err := f.svc.ReplaceSingleton(ctx, "promotion", models.Document{
		"isActive": true, "offerRate": "20",
	})
	require.NoError(t, err)

	f.expectTx()
	stored, err := f.svc.ReplaceSingleton(ctx, "promotion", models.Document{
		"isActive": false, "offerRate": "35",
	})
	require.NoError(t, err)
	require.Equal(t, common.PromotionID, stored.ID())

	listed, err := f.svc.List(ctx, "promotion")
	require.NoError(t, err)
	require.Len(t, listed, 1, "singleton replace must leave exactly one record")
	require.Equal(t, "35", listed[0]["offerRate"])
}

func TestAppendComment_OnlyOnVideos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "videos", models.Document{
		"id": "v1", "title": "Intro", "url": "https://video.example/intro",
	})
	require.NoError(t, err)

	c, err := f.svc.AppendComment(ctx, "videos", "v1", models.Comment{Author: "ann", Text: "nice"})
	require.NoError(t, err)
	require.False(t, c.CreatedAt.IsZero())

	_, err = f.svc.AppendComment(ctx, "videos", "v1", models.Comment{Author: "ann"})
	require.True(t, errors.Is(err, common.ErrValidation), "comment text required")

	_, err = f.svc.AppendComment(ctx, "jobs", "j1", models.Comment{Author: "a", Text: "t"})
	require.True(t, errors.Is(err, common.ErrValidation), "jobs has no comment list")
}
