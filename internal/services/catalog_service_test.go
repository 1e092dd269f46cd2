package services

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefmud/species-ident/internal/models"
)

func TestHasPropertyTriState(t *testing.T) {
	env := newTestEnv(t)
	env.addSpecies(t, "Thomson's Gazelle", map[string]bool{"ungulate": true, "carnivore": false})

	_, p, err := env.catalog.HasProperty(env.ctx, "Thomson's Gazelle", "ungulate")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyTrue, p)

	_, p, err = env.catalog.HasProperty(env.ctx, "Thomson's Gazelle", "carnivore")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyFalse, p)

	_, p, err = env.catalog.HasProperty(env.ctx, "Thomson's Gazelle", "bird")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyUnknown, p)

	_, _, err = env.catalog.HasProperty(env.ctx, "Dodo", "bird")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateSpecies(t *testing.T) {
	env := newTestEnv(t)

	sp := env.addSpecies(t, "Plains Zebra", nil)
	assert.Equal(t, "plains-zebra", sp.Slug)
	assert.NotNil(t, sp.Attributes)

	_, err := env.catalog.CreateSpecies(env.ctx, models.SpeciesRequest{Name: "Plains Zebra"})
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "name", conflict.Field)

	_, err = env.catalog.CreateSpecies(env.ctx, models.SpeciesRequest{Name: "  "})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestUpdateSpecies(t *testing.T) {
	env := newTestEnv(t)
	sp := env.addSpecies(t, "wildebeast", map[string]bool{"ungulate": true})

	ref := "https://en.wikipedia.org/wiki/Wildebeest"
	updated, err := env.catalog.UpdateSpecies(env.ctx, sp.ID, models.SpeciesRequest{Name: "Wildebeest", RefURL: &ref})
	require.NoError(t, err)
	assert.Equal(t, "wildebeest", updated.Slug)
	assert.Equal(t, ref, updated.RefURL)
	assert.Equal(t, models.PropertyTrue, updated.HasProperty("ungulate"))

	// omitted fields keep their stored values
	updated, err = env.catalog.UpdateSpecies(env.ctx, sp.ID, models.SpeciesRequest{Attributes: map[string]bool{"ungulate": true, "grazer": true}})
	require.NoError(t, err)
	assert.Equal(t, "Wildebeest", updated.Name)
	assert.Equal(t, ref, updated.RefURL)
	assert.Equal(t, models.PropertyTrue, updated.HasProperty("grazer"))

	// an explicit empty ref_url clears it
	empty := ""
	updated, err = env.catalog.UpdateSpecies(env.ctx, sp.ID, models.SpeciesRequest{RefURL: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.RefURL)
	assert.Equal(t, models.PropertyTrue, updated.HasProperty("grazer"))

	got, err := env.catalog.GetSpeciesByName(env.ctx, "Wildebeest")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.ID)

	_, err = env.catalog.UpdateSpecies(env.ctx, 999, models.SpeciesRequest{Name: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveSpeciesPrefersID(t *testing.T) {
	env := newTestEnv(t)
	first := env.addSpecies(t, "zebra", nil)
	// a species literally named after another species' id
	numeric := env.addSpecies(t, strconv.Itoa(first.ID+100), nil)

	got, err := env.catalog.ResolveSpecies(env.ctx, strconv.Itoa(first.ID))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = env.catalog.ResolveSpecies(env.ctx, numeric.Name)
	require.NoError(t, err)
	assert.Equal(t, numeric.ID, got.ID)

	_, err = env.catalog.ResolveSpecies(env.ctx, "")
	assert.ErrorIs(t, err, models.ErrSpeciesNotFound)
}

func TestLoadImages(t *testing.T) {
	env := newTestEnv(t)
	fixture := `./S1/B04/B04_R1/S1_B04_R1_PICT0001.JPG
./S1/B04/B04_R1/S1_B04_R1_PICT0002.jpg
./S1/B04/B04_R1/notes.txt
S1/B04/B04_R1/S1_B04_R1_PICT0003.JPG`

	res, err := env.catalog.LoadImages(env.ctx, strings.NewReader(fixture), "https://snapshot.example.org/", "S1")
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Loaded: 3}, res)

	img, err := env.catalog.GetImage(env.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "S1/B04/B04_R1/S1_B04_R1_PICT0001.JPG", img.FilePath)
	assert.Equal(t, "https://snapshot.example.org/S1/B04/B04_R1/S1_B04_R1_PICT0001.JPG", img.URL())
	assert.Equal(t, "S1", img.Site)

	res, err = env.catalog.LoadImages(env.ctx, strings.NewReader(fixture), "https://snapshot.example.org/", "S1")
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Skipped: 3}, res)

	size, err := env.catalog.CatalogSize(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestLoadSpecies(t *testing.T) {
	env := newTestEnv(t)
	fixture := `[
		{"model": "species.species", "pk": 1, "fields": {"name": "zebra", "ref_url": "https://en.wikipedia.org/wiki/Zebra", "ungulate": true, "carnivore": false}},
		{"fields": {"name": "lion", "carnivore": true, "notes": "big cat"}},
		{"fields": {"ref_url": "nameless"}}
	]`

	res, err := env.catalog.LoadSpecies(env.ctx, strings.NewReader(fixture))
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Loaded: 2, Skipped: 1}, res)

	zebra, err := env.catalog.GetSpeciesByName(env.ctx, "zebra")
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Zebra", zebra.RefURL)
	assert.Equal(t, map[string]bool{"ungulate": true, "carnivore": false}, zebra.Attributes)

	lion, err := env.catalog.GetSpeciesByName(env.ctx, "lion")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyUnknown, lion.HasProperty("notes"))

	res, err = env.catalog.LoadSpecies(env.ctx, strings.NewReader(fixture))
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Skipped: 3}, res)

	_, err = env.catalog.LoadSpecies(env.ctx, strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestPickRange(t *testing.T) {
	env := newTestEnv(t)
	env.addImages(t, 3, 10)

	size, err := env.catalog.CatalogSize(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	walk, err := env.catalog.PickRange(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, walk)

	configured := NewCatalogService(env.store, 50)
	walk, err = configured.PickRange(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, walk)
}
