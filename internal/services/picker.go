package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jefmud/species-ident/internal/models"
)

// ImageLookup is the part of the store the picker reads.
type ImageLookup interface {
	GetImage(ctx context.Context, id int) (models.Image, error)
	CountImageObservations(ctx context.Context, imageID int) (int, error)
}

// Picker finds images nobody has classified yet.
type Picker struct {
	store ImageLookup

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(store ImageLookup) *Picker {
	return NewPickerWithSeed(store, time.Now().UnixNano())
}

func NewPickerWithSeed(store ImageLookup, seed int64) *Picker {
	return &Picker{store: store, rng: rand.New(rand.NewSource(seed))}
}

func (p *Picker) randomID(catalogSize int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(catalogSize) + 1
}

// NextUnclassified walks image ids forward from startHint (or a random id when
// the hint is outside [1, catalogSize]), wrapping to 1, and returns the first
// existing image with no observations. Missing ids are skipped. After
// catalogSize lookups it gives up with models.ErrNotFound.
func (p *Picker) NextUnclassified(ctx context.Context, catalogSize, startHint int) (models.Image, error) {
	if catalogSize <= 0 {
		return models.Image{}, models.ErrNotFound
	}

	start := startHint
	if start < 1 || start > catalogSize {
		start = p.randomID(catalogSize)
	}

	for i := 0; i < catalogSize; i++ {
		if err := ctx.Err(); err != nil {
			return models.Image{}, err
		}

		id := (start-1+i)%catalogSize + 1
		img, err := p.store.GetImage(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.Image{}, err
		}

		n, err := p.store.CountImageObservations(ctx, id)
		if err != nil {
			return models.Image{}, err
		}
		if n == 0 {
			return img, nil
		}
	}

	return models.Image{}, models.ErrNotFound
}
