package portfolio

import (
	"context"
	"fmt"
	"math"

	"github.com/maja42/goval"
	"gonum.org/v1/gonum/optimize"

	"github.com/wilhelmagren/finq/internal/formulas"
	"github.com/wilhelmagren/finq/internal/logger"
)

// Objective scores a candidate weight vector. Lower is better.
type Objective func(weights []float64) (float64, error)

func (p *Portfolio) SetObjective(obj Objective) {
	p.objective = obj
}

// SetBounds constrains every weight to [lower[i], upper[i]].
func (p *Portfolio) SetBounds(lower, upper []float64) error {
	if len(lower) != len(p.assets) || len(upper) != len(p.assets) {
		return fmt.Errorf("bounds must have one entry per asset, got %d/%d for %d assets", len(lower), len(upper), len(p.assets))
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return fmt.Errorf("lower bound %f above upper bound %f for %s", lower[i], upper[i], p.symbols[i])
		}
	}
	p.lower = append([]float64{}, lower...)
	p.upper = append([]float64{}, upper...)
	return nil
}

// SetUniformBounds applies the same [lower, upper] interval to every asset.
func (p *Portfolio) SetUniformBounds(lower, upper float64) error {
	lo := make([]float64, len(p.assets))
	hi := make([]float64, len(p.assets))
	for i := range lo {
		lo[i] = lower
		hi[i] = upper
	}
	return p.SetBounds(lo, hi)
}

// MeanVarianceObjective minimizes riskTolerance * w'Σw - mu'w over daily
// returns. Larger riskTolerance means less appetite for variance.
func (p *Portfolio) MeanVarianceObjective(riskTolerance float64) (Objective, error) {
	cov, err := p.CovarianceMatrix(1)
	if err != nil {
		return nil, err
	}
	mu, err := p.AssetMeanReturns(1)
	if err != nil {
		return nil, err
	}

	return func(w []float64) (float64, error) {
		return formulas.MeanVariance(riskTolerance, cov, mu, w)
	}, nil
}

// NegativeSharpeObjective minimizes the negated annualized Sharpe ratio,
// i.e. maximizes risk-adjusted return.
func (p *Portfolio) NegativeSharpeObjective() (Objective, error) {
	cov, err := p.CovarianceMatrix(1)
	if err != nil {
		return nil, err
	}
	mu, err := p.AssetMeanReturns(1)
	if err != nil {
		return nil, err
	}

	tradingDays := float64(p.cfg.TradingDays)
	riskFreeRate := p.cfg.RiskFreeRate

	return func(w []float64) (float64, error) {
		ret, err := formulas.WeightedReturn(w, mu)
		if err != nil {
			return 0, err
		}
		variance, err := formulas.WeightedVariance(w, cov)
		if err != nil {
			return 0, err
		}
		if variance <= 0 {
			return 0, fmt.Errorf("non-positive portfolio variance %f", variance)
		}
		vol := math.Sqrt(variance) * math.Sqrt(tradingDays)
		return -formulas.SharpeRatio(ret*tradingDays, vol, riskFreeRate), nil
	}, nil
}

// ExpressionObjective compiles a user-supplied expression over the
// variables variance, expectedReturn, volatility, sharpe and riskFreeRate,
// all annualized except variance (daily). For example:
//
//	"1.5 * variance - expectedReturn"
func (p *Portfolio) ExpressionObjective(src string) (Objective, error) {
	cov, err := p.CovarianceMatrix(1)
	if err != nil {
		return nil, err
	}
	mu, err := p.AssetMeanReturns(1)
	if err != nil {
		return nil, err
	}

	tradingDays := float64(p.cfg.TradingDays)
	riskFreeRate := p.cfg.RiskFreeRate
	eval := goval.NewEvaluator()

	obj := func(w []float64) (float64, error) {
		variance, err := formulas.WeightedVariance(w, cov)
		if err != nil {
			return 0, err
		}
		ret, err := formulas.WeightedReturn(w, mu)
		if err != nil {
			return 0, err
		}

		annualReturn := ret * tradingDays
		volatility := math.Sqrt(math.Abs(variance)) * math.Sqrt(tradingDays)
		sharpe := 0.0
		if volatility > 0 {
			sharpe = formulas.SharpeRatio(annualReturn, volatility, riskFreeRate)
		}

		variables := map[string]interface{}{
			"variance":       variance,
			"expectedReturn": annualReturn,
			"volatility":     volatility,
			"sharpe":         sharpe,
			"riskFreeRate":   riskFreeRate,
		}

		result, err := eval.Evaluate(src, variables, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to evaluate objective expression: %w", err)
		}

		switch v := result.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
		return 0, fmt.Errorf("objective expression returned %T, expected a number", result)
	}

	// compile check against the current weights shape, so a bad expression
	// fails here instead of mid-optimization
	probe := make([]float64, len(p.assets))
	for i := range probe {
		probe[i] = 1.0 / float64(len(probe))
	}
	if _, err := obj(probe); err != nil {
		return nil, err
	}

	return obj, nil
}

type OptimizeOptions struct {
	// MaxIterations bounds the Nelder-Mead major iterations. Defaults
	// to 1000.
	MaxIterations int
	// PenaltyWeight scales the quadratic penalty applied to bound
	// violations and deviation from full investment. Defaults to 1e4.
	PenaltyWeight float64
}

func (o *OptimizeOptions) applyDefaults() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 1000
	}
	if o.PenaltyWeight == 0 {
		o.PenaltyWeight = 1e4
	}
}

type Result struct {
	Weights        []float64
	ObjectiveValue float64
	Iterations     int
	Converged      bool
}

// Optimize minimizes the configured objective over the weight simplex with
// Nelder-Mead. Bounds and the full-investment constraint enter as quadratic
// penalties; the incumbent is clamped and renormalized on exit. The current
// weights seed the search.
func (p *Portfolio) Optimize(ctx context.Context, opts OptimizeOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.objective == nil {
		return nil, fmt.Errorf("no objective function set, did you call SetObjective?")
	}
	if p.weights == nil {
		return nil, ErrNotOptimized
	}
	opts.applyDefaults()

	penalty := func(w []float64) float64 {
		out := 0.0
		sum := 0.0
		for i, v := range w {
			sum += v
			if p.lower != nil && v < p.lower[i] {
				out += (p.lower[i] - v) * (p.lower[i] - v)
			}
			if p.upper != nil && v > p.upper[i] {
				out += (v - p.upper[i]) * (v - p.upper[i])
			}
		}
		out += (sum - 1) * (sum - 1)
		return out
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			f, err := p.objective(w)
			if err != nil || math.IsNaN(f) {
				return math.Inf(1)
			}
			return f + opts.PenaltyWeight*penalty(w)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
	}

	result, err := optimize.Minimize(problem, p.weights, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("weight optimization failed: %w", err)
	}

	weights, err := p.feasibleWeights(result.X)
	if err != nil {
		return nil, err
	}
	if err := p.SetWeights(weights); err != nil {
		return nil, err
	}

	value, err := p.objective(weights)
	if err != nil {
		return nil, err
	}

	converged := result.Status != optimize.IterationLimit
	logger.Info("optimizer finished after %d iteration(s), status %v", result.Stats.MajorIterations, result.Status)

	return &Result{
		Weights:        weights,
		ObjectiveValue: value,
		Iterations:     result.Stats.MajorIterations,
		Converged:      converged,
	}, nil
}

// feasibleWeights clamps into the configured bounds and renormalizes to a
// full investment.
func (p *Portfolio) feasibleWeights(x []float64) ([]float64, error) {
	w := make([]float64, len(x))
	copy(w, x)

	sum := 0.0
	for i := range w {
		if p.lower != nil && w[i] < p.lower[i] {
			w[i] = p.lower[i]
		}
		if p.upper != nil && w[i] > p.upper[i] {
			w[i] = p.upper[i]
		}
		sum += w[i]
	}
	if sum == 0 {
		return nil, fmt.Errorf("optimizer produced an all-zero allocation")
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}
