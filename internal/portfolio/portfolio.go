package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wilhelmagren/finq/internal/dataset"
	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/formulas"
)

// ErrNotOptimized is returned by portfolio-level statistics before weights
// have been initialized or optimized.
var ErrNotOptimized = errors.New("no portfolio weights available, initialize or optimize the portfolio first")

type Config struct {
	// RiskFreeRate is the annual risk free rate used for Sharpe ratios.
	// Defaults to 0.005.
	RiskFreeRate float64
	// TradingDays per year, used to annualize statistics. Defaults to 252.
	TradingDays int
	// ConfidenceLevel for downside statistics. Defaults to 0.95.
	ConfidenceLevel float64
	// Seed for random weight initialization and sampling. Zero seeds from
	// the wall clock.
	Seed uint64
}

func (c *Config) applyDefaults() {
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = 5e-3
	}
	if c.TradingDays <= 0 {
		c.TradingDays = 252
	}
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = 0.95
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
}

// Portfolio wraps a set of assets with aligned price histories and, once
// set, a weight allocation across them.
type Portfolio struct {
	assets  []*domain.Asset
	symbols []string
	cfg     Config
	rnd     *rand.Rand

	weights      []float64
	objective    Objective
	lower, upper []float64
}

// New builds a portfolio over assets whose bars are already aligned (equal
// number of observations on the same dates).
func New(assets []*domain.Asset, cfg Config) (*Portfolio, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("cannot build a portfolio of zero assets")
	}

	n := len(assets[0].Bars)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 observations per asset, got %d", n)
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		if len(a.Bars) != n {
			return nil, fmt.Errorf("asset %s has %d observations but %s has %d, have you verified the dataset?", a.Symbol, len(a.Bars), assets[0].Symbol, n)
		}
		symbols = append(symbols, a.Symbol)
	}

	cfg.applyDefaults()
	return &Portfolio{
		assets:  assets,
		symbols: symbols,
		cfg:     cfg,
		rnd:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// NewFromDataset builds a portfolio over a repaired and verified dataset.
func NewFromDataset(ds *dataset.Dataset, cfg Config) (*Portfolio, error) {
	if err := ds.Verify(); err != nil {
		return nil, err
	}
	return New(ds.Assets(), cfg)
}

func (p *Portfolio) Len() int {
	return len(p.assets)
}

func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// AssetReturns computes per-asset simple returns over the given lag, one
// row per asset.
func (p *Portfolio) AssetReturns(period int) ([][]float64, error) {
	out := make([][]float64, 0, len(p.assets))
	for _, a := range p.assets {
		returns, err := a.Returns(period)
		if err != nil {
			return nil, err
		}
		out = append(out, returns)
	}
	return out, nil
}

func (p *Portfolio) AssetMeanReturns(period int) ([]float64, error) {
	assetReturns, err := p.AssetReturns(period)
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(assetReturns))
	for i, returns := range assetReturns {
		mean, err := stats.Mean(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to compute mean return for %s: %w", p.symbols[i], err)
		}
		out = append(out, mean)
	}
	return out, nil
}

// CovarianceMatrix is the sample covariance of per-asset returns.
func (p *Portfolio) CovarianceMatrix(period int) (*mat.SymDense, error) {
	assetReturns, err := p.AssetReturns(period)
	if err != nil {
		return nil, err
	}

	nObs := len(assetReturns[0])
	nAssets := len(assetReturns)
	if nObs < 2 {
		return nil, fmt.Errorf("need at least 2 return observations to compute a covariance matrix, got %d", nObs)
	}

	// stat.CovarianceMatrix wants observations in rows
	samples := mat.NewDense(nObs, nAssets, nil)
	for j, returns := range assetReturns {
		for i, r := range returns {
			samples.Set(i, j, r)
		}
	}

	cov := mat.NewSymDense(nAssets, nil)
	stat.CovarianceMatrix(cov, samples, nil)
	return cov, nil
}

// AssetVolatilities are per-asset return stdevs annualized by the
// configured number of trading days.
func (p *Portfolio) AssetVolatilities() ([]float64, error) {
	out := make([]float64, 0, len(p.assets))
	for _, a := range p.assets {
		v, err := a.Volatility(p.cfg.TradingDays)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Portfolio) Weights() ([]float64, error) {
	if p.weights == nil {
		return nil, ErrNotOptimized
	}
	out := make([]float64, len(p.weights))
	copy(out, p.weights)
	return out, nil
}

func (p *Portfolio) SetWeights(w []float64) error {
	if len(w) != len(p.assets) {
		return fmt.Errorf("got %d weights for %d assets", len(w), len(p.assets))
	}
	p.weights = make([]float64, len(w))
	copy(p.weights, w)
	return nil
}

// WeightsDistribution picks the distribution for random initialization.
type WeightsDistribution string

const (
	LogNormalWeights WeightsDistribution = "lognormal"
	UniformWeights   WeightsDistribution = "uniform"
)

// InitRandomWeights draws a random allocation and normalizes it to a full
// investment.
func (p *Portfolio) InitRandomWeights(dist WeightsDistribution) error {
	w, err := p.randomWeights(dist)
	if err != nil {
		return err
	}
	return p.SetWeights(w)
}

func (p *Portfolio) randomWeights(dist WeightsDistribution) ([]float64, error) {
	w := make([]float64, len(p.assets))
	switch dist {
	case LogNormalWeights, "":
		d := distuv.LogNormal{Mu: 0, Sigma: 1, Src: p.rnd}
		for i := range w {
			w[i] = d.Rand()
		}
	case UniformWeights:
		for i := range w {
			w[i] = p.rnd.Float64()
		}
	default:
		return nil, fmt.Errorf("unknown weights distribution %q", dist)
	}

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("drew an all-zero weight vector")
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

// Returns are the weighted single-lag returns of the portfolio.
func (p *Portfolio) Returns(period int) ([]float64, error) {
	if p.weights == nil {
		return nil, ErrNotOptimized
	}

	assetReturns, err := p.AssetReturns(period)
	if err != nil {
		return nil, err
	}

	nObs := len(assetReturns[0])
	out := make([]float64, nObs)
	for t := 0; t < nObs; t++ {
		for i := range assetReturns {
			out[t] += p.weights[i] * assetReturns[i][t]
		}
	}
	return out, nil
}

func (p *Portfolio) MeanReturn(period int) (float64, error) {
	if p.weights == nil {
		return 0, ErrNotOptimized
	}
	mu, err := p.AssetMeanReturns(period)
	if err != nil {
		return 0, err
	}
	return formulas.WeightedReturn(p.weights, mu)
}

// AnnualizedReturn scales the mean single-period return by the configured
// number of trading days.
func (p *Portfolio) AnnualizedReturn() (float64, error) {
	mean, err := p.MeanReturn(1)
	if err != nil {
		return 0, err
	}
	return mean * float64(p.cfg.TradingDays), nil
}

// Volatility is the annualized portfolio standard deviation sqrt(w'Σw).
func (p *Portfolio) Volatility() (float64, error) {
	if p.weights == nil {
		return 0, ErrNotOptimized
	}

	cov, err := p.CovarianceMatrix(1)
	if err != nil {
		return 0, err
	}
	variance, err := formulas.WeightedVariance(p.weights, cov)
	if err != nil {
		return 0, err
	}

	return math.Sqrt(variance) * math.Sqrt(float64(p.cfg.TradingDays)), nil
}

// SharpeRatio is the annualized excess return per unit of annualized
// volatility.
func (p *Portfolio) SharpeRatio() (float64, error) {
	ret, err := p.AnnualizedReturn()
	if err != nil {
		return 0, err
	}
	vol, err := p.Volatility()
	if err != nil {
		return 0, err
	}
	if vol == 0 {
		return 0, fmt.Errorf("cannot compute sharpe ratio with zero volatility")
	}
	return formulas.SharpeRatio(ret, vol, p.cfg.RiskFreeRate), nil
}

// SampledPortfolio is one random allocation with its risk/return statistics,
// used to scatter against the optimized result.
type SampledPortfolio struct {
	Weights        []float64 `json:"weights"`
	ExpectedReturn float64   `json:"expectedReturn"`
	Volatility     float64   `json:"volatility"`
}

func (p *Portfolio) SampleRandomPortfolios(n int, dist WeightsDistribution) ([]SampledPortfolio, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of samples must be positive, got %d", n)
	}

	mu, err := p.AssetMeanReturns(1)
	if err != nil {
		return nil, err
	}
	cov, err := p.CovarianceMatrix(1)
	if err != nil {
		return nil, err
	}

	annualize := math.Sqrt(float64(p.cfg.TradingDays))
	out := make([]SampledPortfolio, 0, n)
	for i := 0; i < n; i++ {
		w, err := p.randomWeights(dist)
		if err != nil {
			return nil, err
		}
		ret, err := formulas.WeightedReturn(w, mu)
		if err != nil {
			return nil, err
		}
		variance, err := formulas.WeightedVariance(w, cov)
		if err != nil {
			return nil, err
		}
		out = append(out, SampledPortfolio{
			Weights:        w,
			ExpectedReturn: ret * float64(p.cfg.TradingDays),
			Volatility:     math.Sqrt(variance) * annualize,
		})
	}

	return out, nil
}
