package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/wilhelmagren/finq/internal/formulas"
)

// Asset is one security's price history.
type Asset struct {
	Symbol string
	Name   string
	Bars   []Bar
}

func NewAsset(symbol, name string, bars []Bar) *Asset {
	a := &Asset{
		Symbol: symbol,
		Name:   name,
		Bars:   bars,
	}
	a.SortBars()
	return a
}

func (a *Asset) SortBars() {
	sort.Slice(a.Bars, func(i, j int) bool {
		return a.Bars[i].Date.Before(a.Bars[j].Date)
	})
}

func (a Asset) Dates() []time.Time {
	dates := make([]time.Time, 0, len(a.Bars))
	for _, b := range a.Bars {
		dates = append(dates, b.Date)
	}
	return dates
}

func (a Asset) Closes() []float64 {
	closes := make([]float64, 0, len(a.Bars))
	for _, b := range a.Bars {
		closes = append(closes, b.Close.InexactFloat64())
	}
	return closes
}

// Returns computes simple close-to-close returns over the given lag.
func (a Asset) Returns(period int) ([]float64, error) {
	returns, err := formulas.PeriodReturns(a.Closes(), period)
	if err != nil {
		return nil, fmt.Errorf("failed to compute %d-period returns for %s: %w", period, a.Symbol, err)
	}
	return returns, nil
}

func (a Asset) MeanReturn(period int) (float64, error) {
	returns, err := a.Returns(period)
	if err != nil {
		return 0, err
	}
	return stats.Mean(returns)
}

// Volatility is the standard deviation of single-period returns scaled by
// sqrt(period).
func (a Asset) Volatility(period int) (float64, error) {
	returns, err := a.Returns(1)
	if err != nil {
		return 0, err
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to compute volatility for %s: %w", a.Symbol, err)
	}
	return stdev * math.Sqrt(float64(period)), nil
}

func (a Asset) Skewness() (float64, error) {
	s, err := formulas.Skewness(a.Closes())
	if err != nil {
		return 0, fmt.Errorf("failed to compute skewness for %s: %w", a.Symbol, err)
	}
	return s, nil
}
