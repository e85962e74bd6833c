package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/util"
)

func assetWithCloses(symbol string, closes ...float64) *domain.Asset {
	bars := make([]domain.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, domain.SyntheticBar(util.NewDate(2024, 1, 1+i), c))
	}
	return domain.NewAsset(symbol, symbol, bars)
}

func twoAssetPortfolio(t *testing.T) *Portfolio {
	t.Helper()
	p, err := New([]*domain.Asset{
		assetWithCloses("A", 100, 110, 99, 108.9, 103.455),
		assetWithCloses("B", 50, 51, 52.02, 51.4998, 52.014798),
	}, Config{Seed: 42})
	require.NoError(t, err)
	return p
}

func TestNewValidatesAlignment(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)

	_, err = New([]*domain.Asset{assetWithCloses("A", 100)}, Config{})
	require.Error(t, err, "single observation")

	_, err = New([]*domain.Asset{
		assetWithCloses("A", 100, 101, 102),
		assetWithCloses("B", 50, 51),
	}, Config{})
	require.Error(t, err, "misaligned histories")
}

func TestAssetMeanReturns(t *testing.T) {
	p := twoAssetPortfolio(t)

	mu, err := p.AssetMeanReturns(1)
	require.NoError(t, err)
	require.Len(t, mu, 2)
	// A alternates +10%/-10%/+10%/-5%; B +2%/+2%/-1%/+1%
	require.InDelta(t, 0.0125, mu[0], 1e-9)
	require.InDelta(t, 0.01, mu[1], 1e-9)
}

func TestCovarianceMatrix(t *testing.T) {
	p := twoAssetPortfolio(t)

	cov, err := p.CovarianceMatrix(1)
	require.NoError(t, err)

	n, _ := cov.Dims()
	require.Equal(t, 2, n)
	require.Greater(t, cov.At(0, 0), cov.At(1, 1), "A is the more volatile asset")
	require.Equal(t, cov.At(0, 1), cov.At(1, 0))
}

func TestPortfolioStatisticsRequireWeights(t *testing.T) {
	p := twoAssetPortfolio(t)

	_, err := p.Weights()
	require.ErrorIs(t, err, ErrNotOptimized)
	_, err = p.Returns(1)
	require.ErrorIs(t, err, ErrNotOptimized)
	_, err = p.MeanReturn(1)
	require.ErrorIs(t, err, ErrNotOptimized)
	_, err = p.Volatility()
	require.ErrorIs(t, err, ErrNotOptimized)
}

func TestWeightedStatistics(t *testing.T) {
	p := twoAssetPortfolio(t)
	require.NoError(t, p.SetWeights([]float64{0.5, 0.5}))

	mean, err := p.MeanReturn(1)
	require.NoError(t, err)
	require.InDelta(t, 0.01125, mean, 1e-9)

	vol, err := p.Volatility()
	require.NoError(t, err)
	require.Greater(t, vol, 0.0)

	sharpe, err := p.SharpeRatio()
	require.NoError(t, err)
	require.False(t, math.IsNaN(sharpe))
}

func TestInitRandomWeights(t *testing.T) {
	p := twoAssetPortfolio(t)

	require.NoError(t, p.InitRandomWeights(LogNormalWeights))
	w, err := p.Weights()
	require.NoError(t, err)

	sum := 0.0
	for _, v := range w {
		require.Greater(t, v, 0.0)
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-12)

	require.Error(t, p.InitRandomWeights("cauchy"))
}

func TestSetWeightsLengthMismatch(t *testing.T) {
	p := twoAssetPortfolio(t)
	require.Error(t, p.SetWeights([]float64{1}))
}

func TestSampleRandomPortfolios(t *testing.T) {
	p := twoAssetPortfolio(t)

	samples, err := p.SampleRandomPortfolios(25, LogNormalWeights)
	require.NoError(t, err)
	require.Len(t, samples, 25)
	for _, s := range samples {
		require.Greater(t, s.Volatility, 0.0)
		require.Len(t, s.Weights, 2)
	}

	_, err = p.SampleRandomPortfolios(0, LogNormalWeights)
	require.Error(t, err)
}
