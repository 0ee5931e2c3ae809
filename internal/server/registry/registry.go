// Package registry holds the closed mapping from collection name to its
// storage table and field policy. The set of collections is fixed at build
// time; there is no dynamic registration.
package registry

import (
	"fmt"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
)

// Collection describes one named collection: where it is stored, which of
// its fields carry hosted images, how listings are ordered and which fields
// a create must provide.
type Collection struct {
	Name         string
	Table        string
	ImageFields  []string
	GalleryField string
	// SortAscending marks catalog-ordered collections (insertion order).
	// Everything else lists newest first.
	SortAscending bool
	// Singleton collections hold at most one record under a constant id.
	Singleton bool
	Required  []string
	// HasComments enables the append-only nested comment list.
	HasComments bool
	// PublicCreate opens creation to unauthenticated visitors. Contact
	// messages and job applications are submitted from the public site.
	PublicCreate bool
}

// Registry resolves collection names. Construct once at startup with New.
type Registry struct {
	byName map[string]*Collection
	names  []string
}

// New returns the registry with every known collection.
func New() *Registry {
	cols := []*Collection{
		{Name: "services", Table: "services", ImageFields: []string{"image"}, SortAscending: true, Required: []string{"title"}},
		{Name: "projects", Table: "projects", ImageFields: []string{"image", "thumbnail"}, GalleryField: "gallery", Required: []string{"title"}},
		{Name: "reviews", Table: "reviews", ImageFields: []string{"image"}, Required: []string{"name", "text"}},
		{Name: "blogs", Table: "blogs", ImageFields: []string{"image", "thumbnail"}, Required: []string{"title", "content"}},
		{Name: "jobs", Table: "jobs", Required: []string{"title"}},
		{Name: "videos", Table: "videos", ImageFields: []string{"thumbnail"}, Required: []string{"title", "url"}, HasComments: true},
		{Name: "carousel", Table: "carousel", ImageFields: []string{"image"}, Required: []string{"image"}},
		{Name: "buildOptions", Table: "build_options", ImageFields: []string{"image"}, SortAscending: true, Required: []string{"title"}},
		{Name: "messages", Table: "messages", Required: []string{"name", "email", "message"}, PublicCreate: true},
		{Name: "promotion", Table: "promotion", ImageFields: []string{"image"}, Singleton: true},
		{Name: "careerApplications", Table: "career_applications", Required: []string{"name", "email", "position"}, PublicCreate: true},
	}

	r := &Registry{byName: make(map[string]*Collection, len(cols))}
	for _, c := range cols {
		r.byName[c.Name] = c
		r.names = append(r.names, c.Name)
	}
	return r
}

// Resolve returns the collection for name, or common.ErrCollectionNotFound.
// Every request handler must resolve before touching storage.
func (r *Registry) Resolve(name string) (*Collection, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrCollectionNotFound, name)
	}
	return c, nil
}

// Names returns all collection names in registration order.
func (r *Registry) Names() []string {
	return r.names
}

// All returns every registered collection in registration order.
func (r *Registry) All() []*Collection {
	out := make([]*Collection, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}
