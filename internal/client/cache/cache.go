// Package cache keeps an in-memory mirror of the server's collections for the
// admin tool. Reads are served locally after a one-time hydration; writes are
// applied to the mirror first and pushed to the server asynchronously.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

// DefaultCollections lists every collection the admin tool mirrors.
var DefaultCollections = []string{
	"services", "projects", "reviews", "blogs", "jobs", "videos",
	"carousel", "buildOptions", "messages", "promotion", "careerApplications",
}

// serverAPI is the slice of the HTTP client the cache pushes through.
type serverAPI interface {
	List(ctx context.Context, collection string) ([]models.Document, error)
	Create(ctx context.Context, collection string, doc models.Document) (models.Document, error)
	ReplaceAll(ctx context.Context, collection string, docs []models.Document) ([]models.Document, error)
	ReplaceSingleton(ctx context.Context, collection string, doc models.Document) (models.Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// snapshotStore persists hydrated state between runs.
type snapshotStore interface {
	Save(ctx context.Context, name string, docs []models.Document) error
	LoadAll(ctx context.Context) (map[string][]models.Document, error)
}

type opKind int

const (
	opCreate opKind = iota
	opReplaceAll
	opReplaceSingleton
	opDelete
)

type pushOp struct {
	kind       opKind
	collection string
	id         string
	doc        models.Document
	docs       []models.Document
}

// Cache is the optimistic mirror. All exported methods are safe for
// concurrent use.
type Cache struct {
	api    serverAPI
	snap   snapshotStore
	logger logging.Logger

	mu       sync.RWMutex
	data     map[string][]models.Document
	pending  map[string]int
	dirty    map[string]bool
	hydrated bool

	pushCh chan pushOp
	wg     sync.WaitGroup
}

// New creates a Cache pushing through api and persisting snapshots to snap.
// snap may be nil when no local persistence is wanted.
func New(api serverAPI, snap snapshotStore, logger logging.Logger, queueSize int) *Cache {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Cache{
		api:     api,
		snap:    snap,
		logger:  logger,
		data:    make(map[string][]models.Document),
		pending: make(map[string]int),
		dirty:   make(map[string]bool),
		pushCh:  make(chan pushOp, queueSize),
	}
}

// Hydrate fills the mirror from the server, once. Collections the server
// cannot deliver fall back to the last snapshot so the tool can still start.
func (c *Cache) Hydrate(ctx context.Context, collections []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hydrated {
		return nil
	}

	// Loaded lazily, with one query, on the first collection the server
	// cannot deliver.
	var fallback map[string][]models.Document

	for _, name := range collections {
		docs, err := c.api.List(ctx, name)
		if err != nil {
			c.logger.Warn(ctx, "hydration fell back to snapshot", "collection", name, "error", err.Error())
			if c.snap == nil {
				continue
			}
			if fallback == nil {
				fallback, err = c.snap.LoadAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to hydrate %q: %w", name, err)
				}
			}
			docs = fallback[name]
		} else if c.snap != nil {
			if err := c.snap.Save(ctx, name, docs); err != nil {
				c.logger.Warn(ctx, "snapshot save failed", "collection", name, "error", err.Error())
			}
		}
		c.data[name] = docs
	}

	c.hydrated = true
	return nil
}

// Hydrated reports whether the one-time hydration has run.
func (c *Cache) Hydrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hydrated
}

// List returns a copy of the mirrored documents of a collection.
func (c *Cache) List(name string) []models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := c.data[name]
	out := make([]models.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// Get returns one mirrored document by id.
func (c *Cache) Get(name, id string) (models.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.data[name] {
		if d.ID() == id {
			return d.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%q/%q: %w", name, id, common.ErrEntityNotFound)
}

// Dirty reports whether a collection has local changes not yet confirmed by
// the server.
func (c *Cache) Dirty(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty[name]
}

func (c *Cache) enqueue(op pushOp) {
	c.pending[op.collection]++
	c.dirty[op.collection] = true

	select {
	case c.pushCh <- op:
	default:
		// Queue full: stays dirty until the next Sync.
		c.pending[op.collection]--
		c.logger.Warn(context.Background(), "push queue full, deferring to sync", "collection", op.collection)
	}
}

// Create adds a document to the mirror, assigning a fresh id when the caller
// left it blank, and queues the insert for the server.
func (c *Cache) Create(name string, doc models.Document) models.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc = doc.Clone()
	if doc.ID() == "" {
		doc[models.FieldID] = uuid.NewString()
	}

	c.data[name] = append(c.data[name], doc)
	c.enqueue(pushOp{kind: opCreate, collection: name, doc: doc.Clone()})
	return doc.Clone()
}

// ReplaceByID swaps one mirrored document and queues a full collection push.
// The server applies per-id replaces through the bulk endpoint so listing
// order stays intact.
func (c *Cache) ReplaceByID(name, id string, doc models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := c.data[name]
	for i, d := range docs {
		if d.ID() == id {
			doc = doc.Clone()
			doc[models.FieldID] = id
			if created, ok := d[models.FieldCreatedAt]; ok {
				doc[models.FieldCreatedAt] = created
			}
			docs[i] = doc
			c.enqueue(pushOp{kind: opReplaceAll, collection: name, docs: c.cloneLocked(name)})
			return nil
		}
	}
	return fmt.Errorf("%q/%q: %w", name, id, common.ErrEntityNotFound)
}

// ReplaceAll swaps a collection's full mirrored contents and queues the bulk
// replace.
func (c *Cache) ReplaceAll(name string, docs []models.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make([]models.Document, len(docs))
	for i, d := range docs {
		copied[i] = d.Clone()
	}
	c.data[name] = copied
	c.enqueue(pushOp{kind: opReplaceAll, collection: name, docs: c.cloneLocked(name)})
}

// ReplaceSingleton swaps the sole document of a singleton collection.
func (c *Cache) ReplaceSingleton(name string, doc models.Document) models.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc = doc.Clone()
	if doc.ID() == "" {
		doc[models.FieldID] = name
	}
	c.data[name] = []models.Document{doc}
	c.enqueue(pushOp{kind: opReplaceSingleton, collection: name, doc: doc.Clone()})
	return doc.Clone()
}

// Delete removes a document from the mirror and queues the server delete.
func (c *Cache) Delete(name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := c.data[name]
	for i, d := range docs {
		if d.ID() == id {
			c.data[name] = append(docs[:i:i], docs[i+1:]...)
			c.enqueue(pushOp{kind: opDelete, collection: name, id: id})
			return nil
		}
	}
	return fmt.Errorf("%q/%q: %w", name, id, common.ErrEntityNotFound)
}

func (c *Cache) cloneLocked(name string) []models.Document {
	docs := c.data[name]
	out := make([]models.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// StartPusher launches the background worker that drains queued writes in
// order. It stops when ctx is cancelled; call Wait to join it.
func (c *Cache) StartPusher(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case op := <-c.pushCh:
				c.push(ctx, op)
			}
		}
	}()
}

// Wait blocks until the pusher goroutine has exited.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) push(ctx context.Context, op pushOp) {
	var err error
	switch op.kind {
	case opCreate:
		_, err = c.api.Create(ctx, op.collection, op.doc)
	case opReplaceAll:
		_, err = c.api.ReplaceAll(ctx, op.collection, op.docs)
	case opReplaceSingleton:
		_, err = c.api.ReplaceSingleton(ctx, op.collection, op.doc)
	case opDelete:
		err = c.api.Delete(ctx, op.collection, op.id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[op.collection]--
	if err != nil {
		c.logger.Error(ctx, "push failed", "collection", op.collection, "error", err.Error())
		return
	}
	if c.pending[op.collection] <= 0 {
		c.dirty[op.collection] = false
		c.saveSnapshotLocked(ctx, op.collection)
	}
}

// Sync force-pushes every dirty collection as a bulk replace. It is the
// recovery path after failed background pushes.
func (c *Cache) Sync(ctx context.Context) error {
	c.mu.Lock()
	var names []string
	for name, d := range c.dirty {
		if d && c.pending[name] == 0 {
			names = append(names, name)
		}
	}
	payload := make(map[string][]models.Document, len(names))
	for _, name := range names {
		payload[name] = c.cloneLocked(name)
	}
	c.mu.Unlock()

	for _, name := range names {
		if _, err := c.api.ReplaceAll(ctx, name, payload[name]); err != nil {
			return fmt.Errorf("failed to sync %q: %w", name, err)
		}
		c.mu.Lock()
		if c.pending[name] == 0 {
			c.dirty[name] = false
			c.saveSnapshotLocked(ctx, name)
		}
		c.mu.Unlock()
	}
	return nil
}

// Reconcile refreshes clean collections from the server. Dirty collections
// keep their local state so unconfirmed edits are never clobbered.
func (c *Cache) Reconcile(ctx context.Context, collections []string) {
	for _, name := range collections {
		c.mu.RLock()
		skip := c.dirty[name] || c.pending[name] > 0
		c.mu.RUnlock()
		if skip {
			continue
		}

		docs, err := c.api.List(ctx, name)
		if err != nil {
			c.logger.Warn(ctx, "reconcile skipped", "collection", name, "error", err.Error())
			continue
		}

		c.mu.Lock()
		if !c.dirty[name] && c.pending[name] == 0 {
			c.data[name] = docs
			c.saveSnapshotLocked(ctx, name)
		}
		c.mu.Unlock()
	}
}

// defaultReconcileInterval is used when the configured interval is missing
// or zero, e.g. a sparse JSON config overlay.
const defaultReconcileInterval = 5 * time.Minute

// StartReconciler refreshes clean state on a fixed interval until ctx is
// cancelled. A non-positive interval falls back to the default.
func (c *Cache) StartReconciler(ctx context.Context, interval time.Duration, collections []string) {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Reconcile(ctx, collections)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Cache) saveSnapshotLocked(ctx context.Context, name string) {
	if c.snap == nil {
		return
	}
	if err := c.snap.Save(ctx, name, c.data[name]); err != nil {
		c.logger.Warn(ctx, "snapshot save failed", "collection", name, "error", err.Error())
	}
}
