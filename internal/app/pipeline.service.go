package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wilhelmagren/finq/internal/dataset"
	"github.com/wilhelmagren/finq/internal/logger"
	"github.com/wilhelmagren/finq/internal/portfolio"
	"github.com/wilhelmagren/finq/internal/repository"
	"github.com/wilhelmagren/finq/pkg/nasdaq"
	"github.com/wilhelmagren/finq/pkg/treasury"
)

// PipelineService runs the full dataset-construction and weight-optimization
// pipeline: fetch, repair, verify, optimize.
type PipelineService interface {
	BuildDataset(ctx context.Context, in DatasetInput) (*dataset.Dataset, error)
	Run(ctx context.Context, in RunInput) (*OptimizationReport, error)
}

// RatesClient resolves treasury yield curves for risk free rates.
type RatesClient interface {
	GetYieldCurve(ctx context.Context, date time.Time) (*treasury.InterestRateMap, error)
}

func NewPipelineService(prices repository.PriceRepository, store repository.Store, nasdaqClient *nasdaq.Client, rates RatesClient) PipelineService {
	return pipelineServiceHandler{
		Prices: prices,
		Store:  store,
		Nasdaq: nasdaqClient,
		Rates:  rates,
	}
}

type pipelineServiceHandler struct {
	Prices repository.PriceRepository
	Store  repository.Store
	Nasdaq *nasdaq.Client
	Rates  RatesClient
}

type DatasetInput struct {
	// Either an index to resolve constituents for, or explicit parallel
	// names and symbols.
	Index   string
	Names   []string
	Symbols []string

	// Period is the price history lookback, e.g. "2y".
	Period string
	Save   bool
	// Local skips the network and loads previously saved data.
	Local            bool
	FetchConcurrency int
}

type ObjectiveSpec struct {
	// Name picks a built-in: "mean-variance" or "sharpe". Empty with an
	// Expression set compiles the expression instead.
	Name          string
	Expression    string
	RiskTolerance float64
}

type RunInput struct {
	Dataset   DatasetInput
	Objective ObjectiveSpec

	RiskFreeRate float64
	// RiskFreeRateSource set to "treasury" resolves RiskFreeRate from the
	// current 3-month treasury yield instead.
	RiskFreeRateSource string
	// InvestAmount converts the optimized weights into security
	// quantities at the latest close. Zero skips allocation.
	InvestAmount  float64
	TradingDays   int
	Seed          uint64
	LowerBound    float64
	UpperBound    float64
	MaxIterations int
	// RandomSamples is how many random allocations to scatter against the
	// optimized portfolio. Zero skips sampling.
	RandomSamples int
}

// OptimizationReport is the outcome of one pipeline run.
type OptimizationReport struct {
	Symbols          []string                     `json:"symbols"`
	Weights          map[string]float64           `json:"weights"`
	ExpectedReturn   float64                      `json:"expectedReturn"`
	Volatility       float64                      `json:"volatility"`
	SharpeRatio      float64                      `json:"sharpeRatio"`
	ObjectiveValue   float64                      `json:"objectiveValue"`
	Iterations       int                          `json:"iterations"`
	Converged        bool                         `json:"converged"`
	RepairedSymbols  []string                     `json:"repairedSymbols"`
	Elapsed          time.Duration                `json:"elapsed"`
	RandomPortfolios []portfolio.SampledPortfolio `json:"randomPortfolios,omitempty"`
	// Allocation holds exact quantities per symbol when an invest amount
	// was given.
	Allocation map[string]decimal.Decimal `json:"allocation,omitempty"`
}

func (h pipelineServiceHandler) BuildDataset(ctx context.Context, in DatasetInput) (*dataset.Dataset, error) {
	cfg := dataset.Config{
		Save:             in.Save,
		FetchConcurrency: in.FetchConcurrency,
	}

	// symbols double as display names when none are given
	if len(in.Names) == 0 && len(in.Symbols) > 0 {
		in.Names = in.Symbols
	}

	ds, err := dataset.Custom(ctx, in.Names, in.Symbols, in.Index, h.Nasdaq, h.Prices, h.Store, cfg)
	if err != nil {
		return nil, err
	}

	if in.Local {
		if err := ds.Load(); err != nil {
			return nil, fmt.Errorf("failed to load dataset from local store: %w", err)
		}
		return ds, nil
	}

	if in.Period == "" {
		return nil, fmt.Errorf("no lookback period given")
	}
	if err := ds.Fetch(ctx, in.Period); err != nil {
		return nil, err
	}
	return ds, nil
}

func (h pipelineServiceHandler) objective(p *portfolio.Portfolio, spec ObjectiveSpec) (portfolio.Objective, error) {
	if spec.Expression != "" {
		return p.ExpressionObjective(spec.Expression)
	}

	switch spec.Name {
	case "", "mean-variance":
		riskTolerance := spec.RiskTolerance
		if riskTolerance == 0 {
			riskTolerance = 1
		}
		return p.MeanVarianceObjective(riskTolerance)
	case "sharpe":
		return p.NegativeSharpeObjective()
	}

	return nil, fmt.Errorf("unknown objective %q", spec.Name)
}

func (h pipelineServiceHandler) Run(ctx context.Context, in RunInput) (*OptimizationReport, error) {
	start := time.Now()

	ds, err := h.BuildDataset(ctx, in.Dataset)
	if err != nil {
		return nil, err
	}

	repaired, err := ds.FixMissing()
	if err != nil {
		return nil, err
	}
	if err := ds.Verify(); err != nil {
		return nil, err
	}

	riskFreeRate := in.RiskFreeRate
	if in.RiskFreeRateSource == "treasury" {
		riskFreeRate, err = h.treasuryRate(ctx)
		if err != nil {
			return nil, err
		}
	}

	p, err := portfolio.NewFromDataset(ds, portfolio.Config{
		RiskFreeRate: riskFreeRate,
		TradingDays:  in.TradingDays,
		Seed:         in.Seed,
	})
	if err != nil {
		return nil, err
	}

	if err := p.InitRandomWeights(portfolio.LogNormalWeights); err != nil {
		return nil, err
	}

	obj, err := h.objective(p, in.Objective)
	if err != nil {
		return nil, err
	}
	p.SetObjective(obj)

	if in.LowerBound != 0 || in.UpperBound != 0 {
		if err := p.SetUniformBounds(in.LowerBound, in.UpperBound); err != nil {
			return nil, err
		}
	}

	result, err := p.Optimize(ctx, portfolio.OptimizeOptions{MaxIterations: in.MaxIterations})
	if err != nil {
		return nil, err
	}

	expectedReturn, err := p.AnnualizedReturn()
	if err != nil {
		return nil, err
	}
	volatility, err := p.Volatility()
	if err != nil {
		return nil, err
	}
	sharpe, err := p.SharpeRatio()
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		Symbols:         p.Symbols(),
		Weights:         map[string]float64{},
		ExpectedReturn:  expectedReturn,
		Volatility:      volatility,
		SharpeRatio:     sharpe,
		ObjectiveValue:  result.ObjectiveValue,
		Iterations:      result.Iterations,
		Converged:       result.Converged,
		RepairedSymbols: repaired,
		Elapsed:         time.Since(start),
	}
	for i, symbol := range p.Symbols() {
		report.Weights[symbol] = result.Weights[i]
	}

	if in.RandomSamples > 0 {
		samples, err := p.SampleRandomPortfolios(in.RandomSamples, portfolio.LogNormalWeights)
		if err != nil {
			return nil, err
		}
		report.RandomPortfolios = samples
	}

	if in.InvestAmount > 0 {
		holdings, err := ComputeAllocation(ComputeAllocationInput{
			PriceMap:     latestCloses(ds),
			InvestAmount: decimal.NewFromFloat(in.InvestAmount),
			Weights:      report.Weights,
		})
		if err != nil {
			return nil, err
		}
		report.Allocation = map[string]decimal.Decimal{}
		for symbol, position := range holdings.Positions {
			report.Allocation[symbol] = position.ExactQuantity
		}
	}

	logger.Info("pipeline finished for %d asset(s) in %v", len(report.Symbols), report.Elapsed)
	return report, nil
}

// treasuryRate resolves the current 3-month treasury yield as an annual
// fraction, the same scale the configured risk free rate uses.
func (h pipelineServiceHandler) treasuryRate(ctx context.Context) (float64, error) {
	if h.Rates == nil {
		return 0, fmt.Errorf("no treasury rates client configured")
	}

	curve, err := h.Rates.GetYieldCurve(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve treasury yield curve: %w", err)
	}
	rate, err := curve.GetRate(3)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve 3-month treasury rate: %w", err)
	}
	return rate, nil
}

func latestCloses(ds *dataset.Dataset) map[string]decimal.Decimal {
	priceMap := map[string]decimal.Decimal{}
	for _, asset := range ds.Assets() {
		if len(asset.Bars) == 0 {
			continue
		}
		priceMap[asset.Symbol] = asset.Bars[len(asset.Bars)-1].Close
	}
	return priceMap
}
