package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sitekeeper/internal/client/cache"
	"github.com/dmitrijs2005/sitekeeper/internal/client/imgedit"
	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return fmt.Errorf("login first: %w", common.ErrUnauthorized)
	}
	return nil
}

// Login prompts for the admin credential and obtains a session token.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.api.Login(ctx, username, string(password)); err != nil {
		return err
	}

	printlnFn("Logged in.")
	return nil
}

// Logout drops the session token.
func (a *App) Logout(ctx context.Context) error {
	a.api.Logout()
	printlnFn("Logged out.")
	return nil
}

// List prints the ids and titles of one collection from the mirror.
func (a *App) List(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}

	docs := a.cache.List(name)
	if len(docs) == 0 {
		printlnFn("(empty)")
		return nil
	}

	for _, d := range docs {
		label, ok := d.StringField("title")
		if !ok {
			label, _ = d.StringField("name")
		}
		printlnFn(fmt.Sprintf("%s  %s", d.ID(), label))
	}
	return nil
}

// Show prints one document as indented JSON.
func (a *App) Show(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}
	id, err := GetSimpleText(a.reader, "Id", os.Stdout)
	if err != nil {
		return err
	}

	doc, err := a.cache.Get(name, id)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	printlnFn(string(b))
	return nil
}

// Create adds a document from prompted name=value fields.
func (a *App) Create(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}

	fields, err := GetFields(a.reader, os.Stdout)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to create: %w", common.ErrValidation)
	}

	doc := models.Document{}
	for k, v := range fields {
		doc[k] = v
	}

	stored := a.cache.Create(name, doc)
	printlnFn("Created", stored.ID())
	return nil
}

// Edit overlays prompted fields onto an existing document.
func (a *App) Edit(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}
	id, err := GetSimpleText(a.reader, "Id", os.Stdout)
	if err != nil {
		return err
	}

	doc, err := a.cache.Get(name, id)
	if err != nil {
		return err
	}

	fields, err := GetFields(a.reader, os.Stdout)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}

	if err := a.cache.ReplaceByID(name, id, doc); err != nil {
		return err
	}
	printlnFn("Updated", id)
	return nil
}

// Delete removes a document; the server cascades its hosted images.
func (a *App) Delete(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}
	id, err := GetSimpleText(a.reader, "Id", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.cache.Delete(name, id); err != nil {
		return err
	}
	printlnFn("Deleted", id)
	return nil
}

// Promo edits the site-wide promotion singleton.
func (a *App) Promo(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	fields, err := GetFields(a.reader, os.Stdout)
	if err != nil {
		return err
	}

	doc := models.Document{}
	for k, v := range fields {
		doc[k] = v
	}

	stored := a.cache.ReplaceSingleton(common.PromotionID, doc)
	printlnFn("Promotion updated", stored.ID())
	return nil
}

// Comment appends a visitor comment to a video. The append is
// server-authoritative, so it goes straight through the API.
func (a *App) Comment(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Video id", os.Stdout)
	if err != nil {
		return err
	}
	author, err := GetSimpleText(a.reader, "Author", os.Stdout)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Comment", os.Stdout)
	if err != nil {
		return err
	}

	stored, err := a.api.AppendComment(ctx, id, models.Comment{Author: author, Text: text})
	if err != nil {
		return err
	}
	printlnFn("Comment added at", stored.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// Image runs a file through the crop pipeline and stores the resulting URL
// on a document field.
func (a *App) Image(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	name, err := GetSimpleText(a.reader, "Collection", os.Stdout)
	if err != nil {
		return err
	}
	id, err := GetSimpleText(a.reader, "Id", os.Stdout)
	if err != nil {
		return err
	}
	field, err := GetSimpleText(a.reader, "Image field (e.g. image, thumbnail)", os.Stdout)
	if err != nil {
		return err
	}

	doc, err := a.cache.Get(name, id)
	if err != nil {
		return err
	}

	path, err := GetSimpleText(a.reader, "File path", os.Stdout)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	prevURL, _ := doc.StringField(field)

	editor := imgedit.NewEditor(a.api)
	if err := editor.Select(path, data, prevURL); err != nil {
		return err
	}
	if err := editor.Edit(); err != nil {
		return err
	}

	spec, err := a.promptCropSpec()
	if err != nil {
		prev := editor.Cancel()
		printlnFn("Cancelled, keeping", prev)
		return err
	}

	res, uploadErr := editor.Finish(ctx, name, spec)
	if uploadErr != nil {
		printlnFn("Upload failed, keeping a local copy:", uploadErr.Error())
	}

	doc[field] = res.URL
	if err := a.cache.ReplaceByID(name, id, doc); err != nil {
		return err
	}

	if res.Local {
		printlnFn("Stored local image data on", id)
	} else {
		printlnFn("Stored", res.URL, "on", id)
	}
	return nil
}

func (a *App) promptCropSpec() (imgedit.CropSpec, error) {
	rectStr, err := GetSimpleText(a.reader, "Crop x0,y0,x1,y1 (empty keeps the full image)", os.Stdout)
	if err != nil {
		return imgedit.CropSpec{}, err
	}
	zoomStr, err := GetSimpleText(a.reader, "Zoom (1.0 keeps size)", os.Stdout)
	if err != nil {
		return imgedit.CropSpec{}, err
	}
	rotStr, err := GetSimpleText(a.reader, "Rotate quarter turns (0-3)", os.Stdout)
	if err != nil {
		return imgedit.CropSpec{}, err
	}

	spec := imgedit.CropSpec{Zoom: 1}
	if rectStr != "" {
		r, err := parseCropRect(rectStr)
		if err != nil {
			return imgedit.CropSpec{}, fmt.Errorf("bad crop: %w", common.ErrValidation)
		}
		spec.Rect = r
	}
	if zoomStr != "" {
		z, err := strconv.ParseFloat(zoomStr, 64)
		if err != nil {
			return imgedit.CropSpec{}, fmt.Errorf("bad zoom: %w", common.ErrValidation)
		}
		spec.Zoom = z
	}
	if rotStr != "" {
		q, err := strconv.Atoi(rotStr)
		if err != nil {
			return imgedit.CropSpec{}, fmt.Errorf("bad rotation: %w", common.ErrValidation)
		}
		spec.Quadrants = q
	}
	return spec, nil
}

// parseCropRect parses "x0,y0,x1,y1" pixel bounds into a rectangle.
func parseCropRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("bad bound %q: %w", p, err)
		}
		vals[i] = v
	}
	return image.Rect(vals[0], vals[1], vals[2], vals[3]), nil
}

// Sync force-pushes dirty collections.
func (a *App) Sync(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.cache.Sync(ctx); err != nil {
		return err
	}
	printlnFn("Synced.")
	return nil
}

// Reconcile refreshes clean collections from the server.
func (a *App) Reconcile(ctx context.Context) error {
	a.cache.Reconcile(ctx, cache.DefaultCollections)
	printlnFn("Reconciled.")
	return nil
}
