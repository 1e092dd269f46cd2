package services

import (
	"context"
	"sort"

	"github.com/jefmud/species-ident/internal/models"
)

// OverallPercentClassified is observations per known image as a percentage,
// 0 when the catalog size is unknown.
func OverallPercentClassified(totalObservations, catalogSize int) float64 {
	if catalogSize <= 0 {
		return 0.0
	}
	return float64(totalObservations) / float64(catalogSize) * 100
}

// SortTotals orders by count descending, then username ascending.
func SortTotals(totals []models.UserTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Count != totals[j].Count {
			return totals[i].Count > totals[j].Count
		}
		return totals[i].Username < totals[j].Username
	})
}

// Aggregator computes leaderboard numbers. Nothing is cached; every call reads
// the ledger.
type Aggregator struct {
	ledger  LedgerStore
	catalog *CatalogService
}

func NewAggregator(ledger LedgerStore, catalog *CatalogService) *Aggregator {
	return &Aggregator{ledger: ledger, catalog: catalog}
}

func (a *Aggregator) UserTotals(ctx context.Context) ([]models.UserTotal, error) {
	totals, err := a.ledger.ObservationTotalsByUser(ctx)
	if err != nil {
		return nil, err
	}
	SortTotals(totals)
	return totals, nil
}

// SpeciesBreakdown maps every species name to the user's observation count.
func (a *Aggregator) SpeciesBreakdown(ctx context.Context, userID int) (map[string]int, error) {
	tallies, err := a.SpeciesTallies(ctx, userID)
	if err != nil {
		return nil, err
	}
	breakdown := make(map[string]int, len(tallies))
	for _, t := range tallies {
		breakdown[t.Species.Name] = t.Count
	}
	return breakdown, nil
}

// SpeciesTallies is SpeciesBreakdown with the species records, ordered by name.
func (a *Aggregator) SpeciesTallies(ctx context.Context, userID int) ([]models.SpeciesTally, error) {
	species, err := a.catalog.ListSpecies(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := a.ledger.SpeciesCountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tallies := make([]models.SpeciesTally, 0, len(species))
	for _, sp := range species {
		tallies = append(tallies, models.SpeciesTally{Species: sp, Count: counts[sp.ID]})
	}
	sort.Slice(tallies, func(i, j int) bool {
		return tallies[i].Species.Name < tallies[j].Species.Name
	})
	return tallies, nil
}

func (a *Aggregator) Summary(ctx context.Context) (models.Summary, error) {
	total, err := a.ledger.CountObservations(ctx)
	if err != nil {
		return models.Summary{}, err
	}
	size, err := a.catalog.CatalogSize(ctx)
	if err != nil {
		return models.Summary{}, err
	}
	users, err := a.UserTotals(ctx)
	if err != nil {
		return models.Summary{}, err
	}

	summary := models.Summary{
		Observations: total,
		Snapshots:    size,
		Percent:      OverallPercentClassified(total, size),
		Users:        users,
	}
	if len(users) > 0 && users[0].Count > 0 {
		summary.Leader = users[0].Username
	}
	return summary, nil
}
