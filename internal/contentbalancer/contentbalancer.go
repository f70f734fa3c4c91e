// Package contentbalancer discourages over-selecting any single cell
// within a quiz session, so the item pool's coverage stays broad instead
// of collapsing onto a handful of cells with the highest raw scores
// (§4.7).
package contentbalancer

import "math"

// Config holds the balancer's thresholds. No environment variable
// overrides them; internal/infra/config reads only CAT_BANDIT_* and
// CAT_CONVERGENCE_*.
type Config struct {
	MaxPerCell      int
	DiversityWeight float64
	MinCellCoverage float64
}

// DefaultConfig returns the §4.7 defaults.
func DefaultConfig() Config {
	return Config{
		MaxPerCell:      5,
		DiversityWeight: 0.3,
		MinCellCoverage: 0.5,
	}
}

// BalanceScore combines a cell's representation within the session so far
// with an exponential penalty once it exceeds MaxPerCell selections.
func BalanceScore(cellSelections, totalSelections int, cfg Config) float64 {
	representation := 0.0
	if totalSelections > 0 {
		representation = float64(cellSelections) / float64(totalSelections)
	}
	over := math.Max(0, float64(cellSelections-cfg.MaxPerCell))
	penalty := math.Exp(0.5 * over)
	return representation * penalty
}

// Adjust applies the balance score to a raw UCB-style score, damping
// candidates from cells that are already over-represented. The
// multiplier never drops below 0.1, so a cell is never fully excluded.
func Adjust(rawScore float64, cellSelections, totalSelections int, cfg Config) float64 {
	balance := BalanceScore(cellSelections, totalSelections, cfg)
	multiplier := math.Max(0.1, 1-balance*cfg.DiversityWeight)
	return rawScore * multiplier
}

// Coverage reports, for a set of cells, how many are over the per-cell
// cap and the fraction of cells that have been touched at all
// (selections > 0). Used as a session-level diagnostic, not a gating rule.
type Coverage struct {
	CellsOverCap  int
	TotalCells    int
	TouchedCells  int
	CoverageRatio float64
	BelowMinimum  bool
}

// EvaluateCoverage computes the Coverage diagnostic from a per-cell
// selection count map.
func EvaluateCoverage(cellSelections map[string]int, cfg Config) Coverage {
	cov := Coverage{TotalCells: len(cellSelections)}
	for _, n := range cellSelections {
		if n > cfg.MaxPerCell {
			cov.CellsOverCap++
		}
		if n > 0 {
			cov.TouchedCells++
		}
	}
	if cov.TotalCells > 0 {
		cov.CoverageRatio = float64(cov.TouchedCells) / float64(cov.TotalCells)
	}
	cov.BelowMinimum = cov.CoverageRatio < cfg.MinCellCoverage
	return cov
}
