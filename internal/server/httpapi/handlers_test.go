package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
	"github.com/dmitrijs2005/sitekeeper/internal/server/auth"
	"github.com/dmitrijs2005/sitekeeper/internal/server/config"
)

// fakeDispatcher records calls and returns canned results.
type fakeDispatcher struct {
	lists        map[string][]models.Document
	public       map[string]bool
	replacedAll  []models.Document
	replacedOne  models.Document
	deleted      []string
	uploadedType string

	err error
}

func (f *fakeDispatcher) PublicCreate(name string) bool {
	return f.public[name]
}

func (f *fakeDispatcher) List(ctx context.Context, name string) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	docs, ok := f.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrCollectionNotFound, name)
	}
	return docs, nil
}

func (f *fakeDispatcher) Get(ctx context.Context, name, id string) (models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.lists[name] {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, common.ErrEntityNotFound
}

func (f *fakeDispatcher) Create(ctx context.Context, name string, doc models.Document) (models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return doc, nil
}

func (f *fakeDispatcher) ReplaceByID(ctx context.Context, name, id string, doc models.Document) (models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := doc.Clone()
	out[models.FieldID] = id
	return out, nil
}

func (f *fakeDispatcher) ReplaceAll(ctx context.Context, name string, docs []models.Document) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.replacedAll = docs
	return docs, nil
}

func (f *fakeDispatcher) ReplaceSingleton(ctx context.Context, name string, doc models.Document) (models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.replacedOne = doc
	return doc, nil
}

func (f *fakeDispatcher) Delete(ctx context.Context, name, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, name+"/"+id)
	return nil
}

func (f *fakeDispatcher) AppendComment(ctx context.Context, name, id string, c models.Comment) (models.Comment, error) {
	if f.err != nil {
		return models.Comment{}, f.err
	}
	c.CreatedAt = time.Now().UTC()
	return c, nil
}

func (f *fakeDispatcher) UploadAsset(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploadedType = contentType
	return "http://127.0.0.1:9000/sitekeeper/v1/" + folder + "/abc", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)
	return cfg
}

func newTestHandler(t *testing.T, f *fakeDispatcher) (*Handler, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	return NewHandler(f, cfg, logging.NewDefault()), cfg
}

func bearer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := auth.GenerateToken(cfg.AdminUser, []byte(cfg.SecretKey), time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(h http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set(common.AccessTokenHeaderName, token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListCollection(t *testing.T) {
	f := &fakeDispatcher{lists: map[string][]models.Document{
		"projects": {{"id": "p1", "title": "Demo"}},
	}}
	h, _ := newTestHandler(t, f)

	w := doRequest(h, http.MethodGet, "/api/collections/projects", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var docs []models.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	require.Equal(t, "p1", docs[0].ID())

	w = doRequest(h, http.MethodGet, "/api/collections/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetEntity_NotFound(t *testing.T) {
	f := &fakeDispatcher{lists: map[string][]models.Document{"projects": {}}}
	h, _ := newTestHandler(t, f)

	w := doRequest(h, http.MethodGet, "/api/collections/projects/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreate_RequiresAuth(t *testing.T) {
	f := &fakeDispatcher{lists: map[string][]models.Document{}}
	h, cfg := newTestHandler(t, f)

	body := []byte(`{"id":"p1","title":"Demo"}`)

	w := doRequest(h, http.MethodPost, "/api/collections/projects", "", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(h, http.MethodPost, "/api/collections/projects", "Bearer garbage", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(h, http.MethodPost, "/api/collections/projects", bearer(t, cfg), body)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreate_VisitorSubmissionsOpen(t *testing.T) {
	f := &fakeDispatcher{
		lists:  map[string][]models.Document{},
		public: map[string]bool{"messages": true, "careerApplications": true},
	}
	h, _ := newTestHandler(t, f)

	// Contact form and job applications come from the public site with no
	// session.
	w := doRequest(h, http.MethodPost, "/api/collections/messages", "",
		[]byte(`{"id":"m1","name":"Ann","email":"ann@example.com","message":"hi"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(h, http.MethodPost, "/api/collections/careerApplications", "",
		[]byte(`{"id":"a1","name":"Bob","email":"bob@example.com","position":"roofer"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	// Everything else still needs the admin token.
	w = doRequest(h, http.MethodPost, "/api/collections/projects", "",
		[]byte(`{"id":"p1","title":"Demo"}`))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReplaceCollection_ShapeDispatch(t *testing.T) {
	f := &fakeDispatcher{lists: map[string][]models.Document{}}
	h, cfg := newTestHandler(t, f)
	token := bearer(t, cfg)

	// array payload → bulk replace
	w := doRequest(h, http.MethodPut, "/api/collections/buildOptions", token,
		[]byte(`[{"id":"o1","title":"A"},{"id":"o2","title":"B"}]`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.replacedAll, 2)
	require.Nil(t, f.replacedOne)

	// object payload → singleton replace
	w = doRequest(h, http.MethodPut, "/api/collections/promotion", token,
		[]byte(`{"isActive":true,"offerRate":"20"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, f.replacedOne["isActive"])

	// anything else → 400
	for _, body := range []string{`"just a string"`, `42`, ``, `   `} {
		w = doRequest(h, http.MethodPut, "/api/collections/promotion", token, []byte(body))
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestDeleteEntity(t *testing.T) {
	f := &fakeDispatcher{lists: map[string][]models.Document{}}
	h, cfg := newTestHandler(t, f)

	w := doRequest(h, http.MethodDelete, "/api/collections/projects/p1", bearer(t, cfg), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []string{"projects/p1"}, f.deleted)
}

func TestDeleteEntity_NotFound(t *testing.T) {
	f := &fakeDispatcher{err: common.ErrEntityNotFound}
	h, cfg := newTestHandler(t, f)

	w := doRequest(h, http.MethodDelete, "/api/collections/projects/p1", bearer(t, cfg), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	f := &fakeDispatcher{}
	h, _ := newTestHandler(t, f)

	w := doRequest(h, http.MethodPost, "/api/login", "", []byte(`{"username":"admin","password":"s3cret"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])

	w = doRequest(h, http.MethodPost, "/api/login", "", []byte(`{"username":"admin","password":"wrong"}`))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppendComment_Open(t *testing.T) {
	f := &fakeDispatcher{}
	h, _ := newTestHandler(t, f)

	w := doRequest(h, http.MethodPost, "/api/collections/videos/v1/comments", "",
		[]byte(`{"author":"ann","text":"nice"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var c models.Comment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	require.Equal(t, "ann", c.Author)
	require.False(t, c.CreatedAt.IsZero())
}

func TestUploadAsset(t *testing.T) {
	f := &fakeDispatcher{}
	h, cfg := newTestHandler(t, f)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("folder", "projects"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(common.AccessTokenHeaderName, bearer(t, cfg))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, strings.Contains(resp["url"], "/v1/projects/"))
}
