package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/compute"
	"github.com/plantlens/plantlens/server/internal/insight"
	"github.com/plantlens/plantlens/server/internal/normalize"
)

// Engine runs analyses with a fixed alias table and capacity model.
// It is safe for concurrent use.
type Engine struct {
	aliases normalize.Aliases
	model   compute.CapacityModel
	now     func() time.Time // injectable for deterministic tests
}

// NewEngine returns an Engine. A nil aliases table means
// normalize.DefaultAliases and a nil model means compute.LinearExtrapolation.
func NewEngine(aliases normalize.Aliases, model compute.CapacityModel) *Engine {
	if aliases == nil {
		aliases = normalize.DefaultAliases()
	}
	if model == nil {
		model = compute.LinearExtrapolation
	}
	return &Engine{aliases: aliases, model: model, now: time.Now}
}

// Run analyzes rows under p. Rows are never modified.
//
// Parameters are validated first, then the rows are normalized; a
// ParameterError, SchemaError, DateParseError or ValueError aborts the run
// with no partial report.
func (e *Engine) Run(rows []types.Row, p types.Parameters) (*types.Report, error) {
	if err := ValidateParameters(p); err != nil {
		return nil, err
	}

	records, err := normalize.Normalize(rows, e.aliases)
	if err != nil {
		return nil, err
	}

	enriched, benchmark := compute.Enrich(records, p, e.model)
	dim, scope := compute.SelectDimension(enriched)

	groups := compute.Aggregate(enriched, dim)
	groups = compute.Stability(enriched, groups, dim)
	groups = insight.Tiers(groups, p.TargetOEE)
	groups = insight.Quadrants(groups)

	summary := insight.Summarize(groups, p, e.model)
	summary.PeriodStart, summary.PeriodEnd = insight.Period(enriched)

	return &types.Report{
		ID:              uuid.New().String(),
		GeneratedAt:     e.now().UTC(),
		Parameters:      p,
		Scope:           scope,
		Dimension:       string(dim),
		Benchmark:       benchmark,
		Records:         enriched,
		Groups:          groups,
		Trend:           compute.Trend(enriched, dim),
		Recommendations: insight.Recommendations(groups, p),
		Summary:         summary,
	}, nil
}
