package optimize

import (
	"fmt"
	"math/rand"

	"smc-lab/internal/domain"
)

// defaultFloatSteps is the number of grid points sampled along a float
// dimension when Steps is unset.
const defaultFloatSteps = 5

// IntParam is an inclusive integer dimension.
type IntParam struct {
	Name      string
	Low, High int
	Apply     func(cfg *domain.StrategyConfig, v int)
}

// FloatParam is an inclusive float dimension. Grid search samples Steps
// evenly spaced points; random search draws uniformly.
type FloatParam struct {
	Name      string
	Low, High float64
	Steps     int
	Apply     func(cfg *domain.StrategyConfig, v float64)
}

// ChoiceParam is a categorical dimension.
type ChoiceParam struct {
	Name    string
	Choices []string
	Apply   func(cfg *domain.StrategyConfig, v string)
}

// Space declares the searched strategy parameters. Dimension order is
// Ints, Floats, Choices, each in declaration order; trial enumeration
// is deterministic given the same space.
type Space struct {
	Ints    []IntParam
	Floats  []FloatParam
	Choices []ChoiceParam
}

// setting is one concrete value of one dimension.
type setting struct {
	name  string
	label string
	apply func(*domain.StrategyConfig)
}

// Validate checks dimension bounds.
func (s Space) Validate() error {
	for _, p := range s.Ints {
		if p.Apply == nil || p.Low > p.High {
			return fmt.Errorf("int dimension %q: invalid bounds or missing apply", p.Name)
		}
	}
	for _, p := range s.Floats {
		if p.Apply == nil || p.Low > p.High {
			return fmt.Errorf("float dimension %q: invalid bounds or missing apply", p.Name)
		}
	}
	for _, p := range s.Choices {
		if p.Apply == nil || len(p.Choices) == 0 {
			return fmt.Errorf("choice dimension %q: no choices or missing apply", p.Name)
		}
	}
	return nil
}

// dimensions expands every dimension into its grid settings.
func (s Space) dimensions() [][]setting {
	var dims [][]setting

	for _, p := range s.Ints {
		p := p
		var vals []setting
		for v := p.Low; v <= p.High; v++ {
			v := v
			vals = append(vals, setting{
				name:  p.Name,
				label: fmt.Sprintf("%d", v),
				apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, v) },
			})
		}
		dims = append(dims, vals)
	}

	for _, p := range s.Floats {
		p := p
		steps := p.Steps
		if steps < 1 {
			steps = defaultFloatSteps
		}
		var vals []setting
		for i := 0; i < steps; i++ {
			v := p.Low
			if steps > 1 {
				v = p.Low + (p.High-p.Low)*float64(i)/float64(steps-1)
			}
			vals = append(vals, setting{
				name:  p.Name,
				label: fmt.Sprintf("%g", v),
				apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, v) },
			})
		}
		dims = append(dims, vals)
	}

	for _, p := range s.Choices {
		p := p
		var vals []setting
		for _, c := range p.Choices {
			c := c
			vals = append(vals, setting{
				name:  p.Name,
				label: c,
				apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, c) },
			})
		}
		dims = append(dims, vals)
	}

	return dims
}

// grid enumerates the cartesian product in row-major order.
func (s Space) grid() [][]setting {
	dims := s.dimensions()
	if len(dims) == 0 {
		return nil
	}

	combos := [][]setting{{}}
	for _, dim := range dims {
		var next [][]setting
		for _, combo := range combos {
			for _, val := range dim {
				row := make([]setting, len(combo), len(combo)+1)
				copy(row, combo)
				next = append(next, append(row, val))
			}
		}
		combos = next
	}
	return combos
}

// sample draws one random setting per dimension.
func (s Space) sample(rng *rand.Rand) []setting {
	var combo []setting

	for _, p := range s.Ints {
		p := p
		v := p.Low + rng.Intn(p.High-p.Low+1)
		combo = append(combo, setting{
			name:  p.Name,
			label: fmt.Sprintf("%d", v),
			apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, v) },
		})
	}
	for _, p := range s.Floats {
		p := p
		v := p.Low + rng.Float64()*(p.High-p.Low)
		combo = append(combo, setting{
			name:  p.Name,
			label: fmt.Sprintf("%g", v),
			apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, v) },
		})
	}
	for _, p := range s.Choices {
		p := p
		c := p.Choices[rng.Intn(len(p.Choices))]
		combo = append(combo, setting{
			name:  p.Name,
			label: c,
			apply: func(cfg *domain.StrategyConfig) { p.Apply(cfg, c) },
		})
	}

	return combo
}
