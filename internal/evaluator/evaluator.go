// Package evaluator turns a submitted batch of beam items into a single
// JobResult. One bad item never aborts the batch: it is skipped, logged, and
// forces the aggregate norm check false.
package evaluator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
	"github.com/structcalc/async-deflection-calculator/internal/engine"
)

// Config controls the simulated processing delay drawn once per batch.
type Config struct {
	DelayMinSeconds int
	DelayMaxSeconds int
}

// Evaluator validates and evaluates deflection batches.
type Evaluator struct {
	cfg     Config
	sleeper deflection.Sleeper
	clock   deflection.Clock
	rng     func(n int) int
	logger  *zap.Logger
}

// New constructs an Evaluator. A nil sleeper sleeps for real; tests inject a
// no-op one.
func New(cfg Config, sleeper deflection.Sleeper, clock deflection.Clock, logger *zap.Logger) *Evaluator {
	if sleeper == nil {
		sleeper = systemSleeper{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		cfg:     cfg,
		sleeper: sleeper,
		clock:   clock,
		rng:     rand.IntN,
		logger:  logger,
	}
}

// Evaluate runs the full batch: one delay draw, then every item in input
// order. The summation order matters for the last float bits, so items are
// never reordered.
func (e *Evaluator) Evaluate(jobID int64, items []any) deflection.JobResult {
	delay := e.drawDelay()
	e.logger.Info("start deflection batch",
		zap.Int64("beam_deflection_id", jobID),
		zap.Int("items", len(items)),
		zap.Int("delay_seconds", delay),
	)
	e.sleeper.Sleep(time.Duration(delay) * time.Second)

	outcomes := make([]itemOutcome, 0, len(items))
	for _, raw := range items {
		o := evaluateItem(raw)
		if o.err != nil {
			e.logger.Warn("item skipped",
				zap.Int64("beam_deflection_id", jobID),
				zap.Error(o.err),
			)
		}
		outcomes = append(outcomes, o)
	}

	withinNorm := true
	var totalQuantity int64
	var weightedSum float64
	results := make([]deflection.ItemResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			withinNorm = false
			continue
		}
		withinNorm = withinNorm && o.withinNorm
		totalQuantity += o.quantity
		weightedSum += o.result.DeflectionMm * float64(o.quantity)
		results = append(results, o.result)
	}

	e.logger.Info("deflection batch done",
		zap.Int64("beam_deflection_id", jobID),
		zap.Int("items_ok", len(results)),
		zap.Int64("total_quantity", totalQuantity),
		zap.Bool("within_norm", withinNorm),
	)

	return deflection.JobResult{
		JobID:              jobID,
		CalculatedAt:       deflection.FormatCalculatedAt(e.clock.Now()),
		WithinNorm:         withinNorm,
		ResultDeflectionMm: round6(weightedSum),
		Items:              results,
	}
}

// drawDelay picks a whole number of seconds in [min,max], clamping the bounds
// so a swapped or negative configuration cannot break the draw.
func (e *Evaluator) drawDelay() int {
	lo, hi := ClampDelayBounds(e.cfg.DelayMinSeconds, e.cfg.DelayMaxSeconds)
	if hi == lo {
		return lo
	}
	return lo + e.rng(hi-lo+1)
}

// ClampDelayBounds normalizes the configured delay window: non-negative and
// ordered min ≤ max regardless of configuration order.
func ClampDelayBounds(a, b int) (int, int) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return max(0, lo), max(0, hi)
}

// itemOutcome tags one item as either a success carrying its result and
// weighting data, or a failure carrying the reason.
type itemOutcome struct {
	result     deflection.ItemResult
	quantity   int64
	withinNorm bool
	err        error
}

func evaluateItem(raw any) itemOutcome {
	item, ok := raw.(map[string]any)
	if !ok {
		return itemOutcome{err: fmt.Errorf("item is not an object, got %T", raw)}
	}

	beamID, err := requiredInt(item, "beam_id")
	if err != nil {
		return itemOutcome{err: err}
	}
	quantity, err := optionalInt(item, "quantity", 1)
	if err != nil {
		return itemOutcome{err: err}
	}
	quantity = max(0, quantity)
	lengthM, err := requiredFloat(item, "length_m")
	if err != nil {
		return itemOutcome{err: err}
	}
	udlKnM, err := requiredFloat(item, "udl_kn_m")
	if err != nil {
		return itemOutcome{err: err}
	}

	beam, err := beamProperties(item)
	if err != nil {
		return itemOutcome{err: err}
	}
	elasticityGPa, err := requiredFloat(beam, "elasticity_gpa")
	if err != nil {
		return itemOutcome{err: err}
	}
	inertiaCm4, err := requiredFloat(beam, "inertia_cm4")
	if err != nil {
		return itemOutcome{err: err}
	}
	allowedRatio, err := optionalInt(beam, "allowed_deflection_ratio", 0)
	if err != nil {
		return itemOutcome{err: err}
	}

	deflectionMm, err := engine.ComputeDeflectionMm(lengthM, udlKnM, elasticityGPa, inertiaCm4)
	if err != nil {
		return itemOutcome{err: fmt.Errorf("beam_id %d: %w", beamID, err)}
	}
	deflectionMm = round6(deflectionMm)

	// Ratio 0 means no norm declared, which is treated as non-compliant, not
	// skipped.
	withinNorm := false
	if allowedRatio > 0 {
		allowedMm := lengthM * 1000.0 / float64(allowedRatio)
		withinNorm = deflectionMm <= allowedMm
	}

	return itemOutcome{
		result:     deflection.ItemResult{BeamID: beamID, DeflectionMm: deflectionMm},
		quantity:   quantity,
		withinNorm: withinNorm,
	}
}

func beamProperties(item map[string]any) (map[string]any, error) {
	v, ok := item["beam"]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing field %q", "beam")
	}
	beam, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be an object, got %T", "beam", v)
	}
	return beam, nil
}

func requiredInt(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	i, err := deflection.ToInt(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return i, nil
}

func optionalInt(m map[string]any, key string, def int64) (int64, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	i, err := deflection.ToInt(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return i, nil
}

func requiredFloat(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	f, err := deflection.ToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

// round6 matches the companion service's 6-decimal rounding of millimeter
// values.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

type systemSleeper struct{}

func (systemSleeper) Sleep(d time.Duration) { time.Sleep(d) }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
