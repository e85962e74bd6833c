package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/util"
	"github.com/wilhelmagren/finq/pkg/treasury"
)

type fakePriceRepository struct {
	bars map[string][]domain.Bar
}

func (f fakePriceRepository) History(_ context.Context, symbol string, _, _ time.Time) ([]domain.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return bars, nil
}

func (f fakePriceRepository) Info(_ context.Context, symbol string) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"symbol":%q}`, symbol)), nil
}

func testPrices() fakePriceRepository {
	closes := func(values ...float64) []domain.Bar {
		bars := []domain.Bar{}
		for i, v := range values {
			bars = append(bars, domain.SyntheticBar(util.NewDate(2024, 1, 1+i), v))
		}
		return bars
	}
	return fakePriceRepository{bars: map[string][]domain.Bar{
		"A": closes(100, 110, 99, 108.9, 103.455, 104.48955),
		"B": closes(50, 51, 52.02, 51.4998, 52.014798, 52.5349458),
	}}
}

func TestPipelineRun(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, nil)

	report, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Names:   []string{"Asset A", "Asset B"},
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Objective: ObjectiveSpec{
			Name:          "mean-variance",
			RiskTolerance: 10,
		},
		Seed:          1,
		RandomSamples: 10,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, report.Symbols)
	require.Len(t, report.Weights, 2)

	sum := 0.0
	for _, w := range report.Weights {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	require.Greater(t, report.Volatility, 0.0)
	require.Len(t, report.RandomPortfolios, 10)
	require.Empty(t, report.RepairedSymbols)
}

func TestPipelineRunWithExpressionObjective(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, nil)

	report, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Names:   []string{"Asset A", "Asset B"},
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Objective: ObjectiveSpec{
			Expression: "10 * variance - expectedReturn",
		},
		Seed: 1,
	})
	require.NoError(t, err)
	require.Len(t, report.Weights, 2)
}

func TestPipelineRunUnknownObjective(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, nil)

	_, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Names:   []string{"Asset A", "Asset B"},
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Objective: ObjectiveSpec{Name: "yolo"},
	})
	require.Error(t, err)
}

func TestPipelineRunRepairsGaps(t *testing.T) {
	prices := testPrices()
	// drop one interior bar from B
	prices.bars["B"] = append(prices.bars["B"][:2], prices.bars["B"][3:]...)

	svc := NewPipelineService(prices, nil, nil, nil)

	report, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Names:   []string{"Asset A", "Asset B"},
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Seed: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, report.RepairedSymbols)
}

type fakeRatesClient struct {
	rates map[int]float64
	err   error
}

func (f fakeRatesClient) GetYieldCurve(_ context.Context, _ time.Time) (*treasury.InterestRateMap, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &treasury.InterestRateMap{Rates: f.rates}, nil
}

func TestPipelineRunWithTreasuryRate(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, fakeRatesClient{
		rates: map[int]float64{3: 0.0504},
	})

	report, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Objective:          ObjectiveSpec{Name: "sharpe"},
		RiskFreeRateSource: "treasury",
		Seed:               1,
	})
	require.NoError(t, err)
	require.Len(t, report.Weights, 2)
}

func TestPipelineRunTreasuryRateUnavailable(t *testing.T) {
	t.Run("client errors", func(t *testing.T) {
		svc := NewPipelineService(testPrices(), nil, nil, fakeRatesClient{
			err: fmt.Errorf("upstream down"),
		})

		_, err := svc.Run(context.Background(), RunInput{
			Dataset: DatasetInput{
				Symbols: []string{"A", "B"},
				Period:  "1mo",
			},
			RiskFreeRateSource: "treasury",
		})
		require.ErrorContains(t, err, "upstream down")
	})

	t.Run("no client wired", func(t *testing.T) {
		svc := NewPipelineService(testPrices(), nil, nil, nil)

		_, err := svc.Run(context.Background(), RunInput{
			Dataset: DatasetInput{
				Symbols: []string{"A", "B"},
				Period:  "1mo",
			},
			RiskFreeRateSource: "treasury",
		})
		require.Error(t, err)
	})

	t.Run("empty yield curve", func(t *testing.T) {
		svc := NewPipelineService(testPrices(), nil, nil, fakeRatesClient{
			rates: map[int]float64{},
		})

		_, err := svc.Run(context.Background(), RunInput{
			Dataset: DatasetInput{
				Symbols: []string{"A", "B"},
				Period:  "1mo",
			},
			RiskFreeRateSource: "treasury",
		})
		require.ErrorContains(t, err, "3-month treasury rate")
	})
}

func TestTreasuryRateKeepsAnnualScale(t *testing.T) {
	h := pipelineServiceHandler{Rates: fakeRatesClient{
		rates: map[int]float64{3: 0.0504},
	}}

	rate, err := h.treasuryRate(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.0504, rate, 1e-9)
}

func TestPipelineRunWithInvestAmount(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, nil)

	report, err := svc.Run(context.Background(), RunInput{
		Dataset: DatasetInput{
			Symbols: []string{"A", "B"},
			Period:  "1mo",
		},
		Seed:         1,
		InvestAmount: 10000,
	})
	require.NoError(t, err)
	require.Len(t, report.Allocation, 2)

	// quantities times the latest close should recover the invested amount
	total := decimal.Zero
	lastClose := map[string]decimal.Decimal{
		"A": decimal.NewFromFloat(104.48955),
		"B": decimal.NewFromFloat(52.5349458),
	}
	for symbol, quantity := range report.Allocation {
		total = total.Add(quantity.Mul(lastClose[symbol]))
	}
	require.InDelta(t, 10000, total.InexactFloat64(), 0.01)
}

func TestComputeAllocation(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		holdings, err := ComputeAllocation(ComputeAllocationInput{
			PriceMap: map[string]decimal.Decimal{
				"A": decimal.NewFromInt(100),
				"B": decimal.NewFromInt(50),
			},
			InvestAmount: decimal.NewFromInt(1000),
			Weights:      map[string]float64{"A": 0.6, "B": 0.4},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B"}, holdings.HeldSymbols())
		require.True(t, holdings.Positions["A"].ExactQuantity.Equal(decimal.NewFromInt(6)))
		require.True(t, holdings.Positions["B"].ExactQuantity.Equal(decimal.NewFromInt(8)))

		total, err := holdings.TotalValue(map[string]decimal.Decimal{
			"A": decimal.NewFromInt(100),
			"B": decimal.NewFromInt(50),
		})
		require.NoError(t, err)
		require.True(t, total.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("missing price", func(t *testing.T) {
		_, err := ComputeAllocation(ComputeAllocationInput{
			PriceMap:     map[string]decimal.Decimal{"A": decimal.NewFromInt(100)},
			InvestAmount: decimal.NewFromInt(1000),
			Weights:      map[string]float64{"A": 0.5, "B": 0.5},
		})
		require.ErrorContains(t, err, "price map does not have B")
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := ComputeAllocation(ComputeAllocationInput{
			PriceMap:     map[string]decimal.Decimal{"A": decimal.NewFromInt(100)},
			InvestAmount: decimal.Zero,
			Weights:      map[string]float64{"A": 1},
		})
		require.Error(t, err)
	})
}

func TestBuildDatasetRequiresPeriod(t *testing.T) {
	svc := NewPipelineService(testPrices(), nil, nil, nil)

	_, err := svc.BuildDataset(context.Background(), DatasetInput{
		Names:   []string{"Asset A"},
		Symbols: []string{"A"},
	})
	require.Error(t, err)
}
