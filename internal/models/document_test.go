package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_ID(t *testing.T) {
	assert.Equal(t, "s1", Document{"id": "s1"}.ID())
	assert.Equal(t, "", Document{}.ID())
	assert.Equal(t, "", Document{"id": 42}.ID())
}

func TestDocument_StringField(t *testing.T) {
	d := Document{"image": "http://x", "empty": "", "count": 3}

	v, ok := d.StringField("image")
	assert.True(t, ok)
	assert.Equal(t, "http://x", v)

	_, ok = d.StringField("empty")
	assert.False(t, ok)

	_, ok = d.StringField("count")
	assert.False(t, ok)

	_, ok = d.StringField("absent")
	assert.False(t, ok)
}

func TestDocument_StringSlice(t *testing.T) {
	d := Document{
		"typed":   []string{"a", "b"},
		"decoded": []any{"a", "", "b", 42},
		"scalar":  "x",
	}

	assert.Equal(t, []string{"a", "b"}, d.StringSlice("typed"))
	assert.Equal(t, []string{"a", "b"}, d.StringSlice("decoded"))
	assert.Nil(t, d.StringSlice("scalar"))
	assert.Nil(t, d.StringSlice("absent"))
}

func TestDocument_Clone(t *testing.T) {
	orig := Document{"id": "s1", "title": "Plumbing"}
	cloned := orig.Clone()

	cloned["title"] = "Changed"
	assert.Equal(t, "Plumbing", orig["title"])
	assert.Equal(t, "s1", cloned.ID())
}
