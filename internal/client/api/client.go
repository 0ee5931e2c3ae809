// Package api implements the HTTP client used by the admin tool to talk to
// the sitekeeper server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

const requestTimeout = 15 * time.Second

// Client wraps the server's REST surface. A successful Login stores the
// bearer token and attaches it to every subsequent request.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// IsLoggedIn reports whether a bearer token is held.
func (c *Client) IsLoggedIn() bool {
	return c.accessToken != ""
}

// Logout drops the stored bearer token.
func (c *Client) Logout() {
	c.accessToken = ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+c.accessToken)
	}
	return req, nil
}

// mapError translates an HTTP error status into the shared error taxonomy so
// callers can branch with errors.Is.
func mapError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	var sentinel error
	switch status {
	case http.StatusNotFound:
		sentinel = common.ErrEntityNotFound
	case http.StatusConflict:
		sentinel = common.ErrDuplicateID
	case http.StatusBadRequest:
		sentinel = common.ErrValidation
	case http.StatusUnauthorized:
		sentinel = common.ErrUnauthorized
	case http.StatusBadGateway:
		sentinel = common.ErrUpload
	default:
		sentinel = common.ErrInternal
	}
	return fmt.Errorf("server: %s: %w", msg, sentinel)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return mapError(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Login authenticates with the admin credential and stores the returned token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	b, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", bytes.NewReader(b))
	if err != nil {
		return err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &resp); err != nil {
		return err
	}
	c.accessToken = resp.Token
	return nil
}

// List returns all documents of a collection in the server's listing order.
func (c *Client) List(ctx context.Context, collection string) ([]models.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/collections/"+collection, nil)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	if err := c.do(req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Get fetches one document by id.
func (c *Client) Get(ctx context.Context, collection, id string) (models.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/collections/"+collection+"/"+id, nil)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Create inserts a new document and returns the stored representation.
func (c *Client) Create(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/collections/"+collection, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	var stored models.Document
	if err := c.do(req, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// ReplaceAll swaps a collection's full contents for docs. The server keeps
// the payload order in subsequent listings.
func (c *Client) ReplaceAll(ctx context.Context, collection string, docs []models.Document) ([]models.Document, error) {
	b, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		b = []byte("[]")
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/collections/"+collection, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	var stored []models.Document
	if err := c.do(req, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// ReplaceSingleton upserts the sole document of a singleton collection.
func (c *Client) ReplaceSingleton(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/collections/"+collection, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	var stored models.Document
	if err := c.do(req, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes a document; the server also removes its hosted images.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/collections/"+collection+"/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// AppendComment adds a visitor comment to a video document and returns the
// stored comment with its server-side timestamp.
func (c *Client) AppendComment(ctx context.Context, id string, comment models.Comment) (models.Comment, error) {
	b, err := json.Marshal(comment)
	if err != nil {
		return models.Comment{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/collections/videos/"+id+"/comments", bytes.NewReader(b))
	if err != nil {
		return models.Comment{}, err
	}

	var stored models.Comment
	if err := c.do(req, &stored); err != nil {
		return models.Comment{}, err
	}
	return stored, nil
}

// UploadAsset sends an image as multipart form data and returns its public URL.
func (c *Client) UploadAsset(ctx context.Context, folder, fileName string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if folder != "" {
		if err := w.WriteField("folder", folder); err != nil {
			return "", err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assets", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.accessToken != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+c.accessToken)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Ping checks server reachability via the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
