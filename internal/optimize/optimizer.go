// Package optimize searches the strategy parameter space by running
// throwaway backtests and ranking them on a chosen objective.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"

	"smc-lab/internal/backtest"
	"smc-lab/internal/domain"
)

// Optimization objectives.
const (
	ObjectiveSharpe       = "sharpe"
	ObjectiveNetProfit    = "net_profit"
	ObjectiveCalmar       = "calmar"
	ObjectiveProfitFactor = "profit_factor"
)

// ErrEmptySpace is returned when the search space has no dimensions.
var ErrEmptySpace = errors.New("empty parameter space")

// Trial is one evaluated parameter set. Score is -Inf when the run was
// rejected, produced no trades, or the objective was undefined.
type Trial struct {
	Index   int
	Params  map[string]string
	Config  domain.StrategyConfig
	Score   float64
	Summary domain.RunSummary
}

// Result holds all trials sorted best first.
type Result struct {
	Best   Trial
	Trials []Trial
}

// TopN returns the best n trials.
func (r *Result) TopN(n int) []Trial {
	if n > len(r.Trials) {
		n = len(r.Trials)
	}
	return r.Trials[:n]
}

// Optimizer evaluates parameter sets against a fixed bar series.
type Optimizer struct {
	runner    *backtest.Runner
	bars      []domain.Bar
	base      domain.RunConfig
	space     Space
	objective string
	verbose   bool
}

// Options configures an Optimizer.
type Options struct {
	Bars      []domain.Bar
	Base      domain.RunConfig // template; searched fields are overwritten per trial
	Space     Space
	Objective string           // defaults to sharpe
	Runner    *backtest.Runner // defaults to a non-persisting runner
	Verbose   bool
}

// New creates an optimizer. Trials never persist their runs.
func New(opts Options) (*Optimizer, error) {
	if err := opts.Space.Validate(); err != nil {
		return nil, err
	}
	if len(opts.Space.Ints)+len(opts.Space.Floats)+len(opts.Space.Choices) == 0 {
		return nil, ErrEmptySpace
	}
	objective := opts.Objective
	if objective == "" {
		objective = ObjectiveSharpe
	}
	switch objective {
	case ObjectiveSharpe, ObjectiveNetProfit, ObjectiveCalmar, ObjectiveProfitFactor:
	default:
		return nil, fmt.Errorf("unknown objective %q", objective)
	}

	runner := opts.Runner
	if runner == nil {
		runner = backtest.NewRunner(backtest.Options{})
	}

	return &Optimizer{
		runner:    runner,
		bars:      opts.Bars,
		base:      opts.Base,
		space:     opts.Space,
		objective: objective,
		verbose:   opts.Verbose,
	}, nil
}

// GridSearch evaluates every combination of the space grid.
func (o *Optimizer) GridSearch(ctx context.Context) (*Result, error) {
	combos := o.space.grid()
	o.log("grid search: %d combinations", len(combos))
	return o.evaluateAll(ctx, combos)
}

// RandomSearch evaluates nTrials combinations drawn with the given
// seed. The same seed always produces the same trials.
func (o *Optimizer) RandomSearch(ctx context.Context, nTrials int, seed int64) (*Result, error) {
	if nTrials < 1 {
		return nil, fmt.Errorf("trial count %d: must be >= 1", nTrials)
	}
	rng := rand.New(rand.NewSource(seed))

	combos := make([][]setting, nTrials)
	for i := range combos {
		combos[i] = o.space.sample(rng)
	}
	o.log("random search: %d trials, seed %d", nTrials, seed)
	return o.evaluateAll(ctx, combos)
}

func (o *Optimizer) evaluateAll(ctx context.Context, combos [][]setting) (*Result, error) {
	trials := make([]Trial, 0, len(combos))
	for i, combo := range combos {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		trial, err := o.evaluate(ctx, i, combo)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}
		trials = append(trials, trial)

		if (i+1)%10 == 0 {
			o.log("completed %d/%d trials", i+1, len(combos))
		}
	}

	// Best first; ties keep enumeration order.
	sort.SliceStable(trials, func(a, b int) bool {
		return trials[a].Score > trials[b].Score
	})

	o.log("best score %.4f with %v", trials[0].Score, trials[0].Params)
	return &Result{Best: trials[0], Trials: trials}, nil
}

func (o *Optimizer) evaluate(ctx context.Context, index int, combo []setting) (Trial, error) {
	cfg := o.base
	params := make(map[string]string, len(combo))
	for _, s := range combo {
		s.apply(&cfg.Strategy)
		params[s.name] = s.label
	}

	trial := Trial{Index: index, Params: params, Config: cfg.Strategy, Score: math.Inf(-1)}

	res, err := o.runner.Run(ctx, o.bars, cfg)
	if err != nil {
		// A combination that fails validation scores -Inf instead of
		// aborting the whole search.
		if errors.Is(err, domain.ErrInvalidConfig) {
			return trial, nil
		}
		return Trial{}, err
	}

	trial.Summary = res.Summary
	trial.Score = score(o.objective, res.Summary)
	return trial, nil
}

// score maps a summary onto the objective axis. Anything other than a
// clean OK run is unusable and ranks below every finite score.
func score(objective string, sum domain.RunSummary) float64 {
	if sum.Status != domain.RunStatusOK {
		return math.Inf(-1)
	}
	var v float64
	switch objective {
	case ObjectiveNetProfit:
		v = sum.NetProfit
	case ObjectiveCalmar:
		v = sum.CalmarRatio
	case ObjectiveProfitFactor:
		v = sum.ProfitFactor
	default:
		v = sum.SharpeRatio
	}
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

func (o *Optimizer) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[optimize] "+format, args...)
	}
}
