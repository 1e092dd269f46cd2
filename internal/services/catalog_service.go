package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jefmud/species-ident/internal/models"
)

type CatalogService struct {
	catalog     CatalogStore
	catalogSize int
}

// NewCatalogService creates the catalog. catalogSize overrides the size derived
// from the store when positive.
func NewCatalogService(catalog CatalogStore, catalogSize int) *CatalogService {
	return &CatalogService{catalog: catalog, catalogSize: catalogSize}
}

func (s *CatalogService) GetImage(ctx context.Context, id int) (models.Image, error) {
	return s.catalog.GetImage(ctx, id)
}

func (s *CatalogService) ListImages(ctx context.Context, offset, limit int) ([]models.Image, error) {
	return s.catalog.ListImages(ctx, offset, limit)
}

func (s *CatalogService) ListSpecies(ctx context.Context) ([]models.Species, error) {
	return s.catalog.ListSpecies(ctx)
}

func (s *CatalogService) GetSpecies(ctx context.Context, id int) (models.Species, error) {
	return s.catalog.GetSpecies(ctx, id)
}

func (s *CatalogService) GetSpeciesByName(ctx context.Context, name string) (models.Species, error) {
	return s.catalog.GetSpeciesByName(ctx, name)
}

// ResolveSpecies accepts a catalog id or a unique species name.
func (s *CatalogService) ResolveSpecies(ctx context.Context, ref string) (models.Species, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Species{}, models.ErrSpeciesNotFound
	}

	if id, err := strconv.Atoi(ref); err == nil {
		sp, err := s.catalog.GetSpecies(ctx, id)
		if err == nil {
			return sp, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return models.Species{}, err
		}
	}

	sp, err := s.catalog.GetSpeciesByName(ctx, ref)
	if errors.Is(err, models.ErrNotFound) {
		return models.Species{}, models.ErrSpeciesNotFound
	}
	return sp, err
}

// HasProperty answers the species "isa" query for a species name.
func (s *CatalogService) HasProperty(ctx context.Context, name, property string) (models.Species, models.Property, error) {
	sp, err := s.catalog.GetSpeciesByName(ctx, name)
	if err != nil {
		return models.Species{}, models.PropertyUnknown, err
	}
	return sp, sp.HasProperty(property), nil
}

func (s *CatalogService) CreateSpecies(ctx context.Context, req models.SpeciesRequest) (models.Species, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Species{}, &models.ValidationError{Field: "name", Message: "name is required"}
	}
	sp := models.Species{
		Name:       name,
		Slug:       slug.Make(name),
		Attributes: req.Attributes,
	}
	if req.RefURL != nil {
		sp.RefURL = *req.RefURL
	}
	if sp.Attributes == nil {
		sp.Attributes = map[string]bool{}
	}
	if err := s.catalog.CreateSpecies(ctx, &sp); err != nil {
		return models.Species{}, err
	}
	return sp, nil
}

func (s *CatalogService) UpdateSpecies(ctx context.Context, id int, req models.SpeciesRequest) (models.Species, error) {
	sp, err := s.catalog.GetSpecies(ctx, id)
	if err != nil {
		return models.Species{}, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		sp.Name = name
		sp.Slug = slug.Make(name)
	}
	if req.RefURL != nil {
		sp.RefURL = *req.RefURL
	}
	if req.Attributes != nil {
		sp.Attributes = req.Attributes
	}
	if err := s.catalog.UpdateSpecies(ctx, sp); err != nil {
		return models.Species{}, err
	}
	return sp, nil
}

// CatalogSize is the known number of images: the configured size, or the
// image count in the store.
func (s *CatalogService) CatalogSize(ctx context.Context) (int, error) {
	if s.catalogSize > 0 {
		return s.catalogSize, nil
	}
	count, _, err := s.catalog.ImageStats(ctx)
	return count, err
}

// PickRange is the id range the picker walks: the configured size, or the
// largest image id in the store.
func (s *CatalogService) PickRange(ctx context.Context) (int, error) {
	if s.catalogSize > 0 {
		return s.catalogSize, nil
	}
	_, maxID, err := s.catalog.ImageStats(ctx)
	return maxID, err
}

type LoadResult struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// LoadImages reads whitespace separated image paths. Only .JPG files are
// loaded; paths already in the catalog are skipped.
func (s *CatalogService) LoadImages(ctx context.Context, r io.Reader, baseURL, site string) (LoadResult, error) {
	var res LoadResult

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(strings.ToUpper(line), ".JPG") {
			continue
		}
		line = strings.TrimPrefix(line, "./")

		img := models.Image{BaseURL: baseURL, FilePath: line, Site: site}
		err := s.catalog.CreateImage(ctx, &img)
		if errors.Is(err, models.ErrConflict) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("load image %s: %w", line, err)
		}
		res.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}

	return res, nil
}

type speciesFixture struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

// LoadSpecies reads a JSON array of {"fields": {...}} records. Boolean fields
// become attributes; names already in the catalog are skipped.
func (s *CatalogService) LoadSpecies(ctx context.Context, r io.Reader) (LoadResult, error) {
	var res LoadResult

	var fixtures []speciesFixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return res, fmt.Errorf("decode species fixture: %w", err)
	}

	for _, f := range fixtures {
		var req models.SpeciesRequest
		req.Attributes = map[string]bool{}
		for key, raw := range f.Fields {
			switch key {
			case "name":
				_ = json.Unmarshal(raw, &req.Name)
			case "ref_url":
				var ref string
				if err := json.Unmarshal(raw, &ref); err == nil {
					req.RefURL = &ref
				}
			default:
				var b bool
				if err := json.Unmarshal(raw, &b); err == nil {
					req.Attributes[key] = b
				}
			}
		}
		if strings.TrimSpace(req.Name) == "" {
			res.Skipped++
			continue
		}

		_, err := s.CreateSpecies(ctx, req)
		if errors.Is(err, models.ErrConflict) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("load species %s: %w", req.Name, err)
		}
		res.Loaded++
	}

	return res, nil
}
