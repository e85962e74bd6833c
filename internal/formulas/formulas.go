package formulas

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// KMoment returns the k-th central moment of x.
func KMoment(x []float64, k int) (float64, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("cannot compute the %d-moment of an empty series", k)
	}

	mean, err := stats.Mean(x)
	if err != nil {
		return 0, err
	}

	sum := 0.0
	for _, v := range x {
		sum += math.Pow(v-mean, float64(k))
	}

	return sum / float64(len(x)), nil
}

// Skewness is the adjusted Fisher-Pearson standardized moment coefficient,
// sqrt(n(n-1))/(n-2) * m3/m2^(3/2).
func Skewness(x []float64) (float64, error) {
	n := len(x)
	if n < 3 {
		return 0, fmt.Errorf("cannot compute skewness of %d value(s), need at least 3", n)
	}

	coeff := math.Sqrt(float64(n*(n-1))) / float64(n-2)

	m2, err := KMoment(x, 2)
	if err != nil {
		return 0, err
	}
	m3, err := KMoment(x, 3)
	if err != nil {
		return 0, err
	}

	if m2 == 0 {
		return 0, fmt.Errorf("cannot compute skewness of a constant series")
	}

	return coeff * (m3 / math.Pow(m2, 1.5)), nil
}

// Ratio divides u by v. A 0/0 ratio counts as 1, so a flat zero-priced
// series produces zero returns instead of NaN.
func Ratio(u, v float64) (float64, error) {
	if v == 0 {
		if u == 0 {
			return 1, nil
		}
		return 0, fmt.Errorf("tried to perform the following division: %f/%f", u, v)
	}
	return u / v, nil
}

// PeriodReturns computes simple returns over the given lag,
// r_t = x_t/x_{t-period} - 1.
func PeriodReturns(x []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(x) <= period {
		return nil, fmt.Errorf("need more than %d observations to compute %d-period returns, got %d", period, period, len(x))
	}

	returns := make([]float64, 0, len(x)-period)
	for i := period; i < len(x); i++ {
		r, err := Ratio(x[i], x[i-period])
		if err != nil {
			return nil, err
		}
		returns = append(returns, r-1)
	}

	return returns, nil
}

// SharpeRatio is the excess return over the risk free rate per unit of
// volatility.
func SharpeRatio(r, v, riskFreeRate float64) float64 {
	return (r - riskFreeRate) / v
}

// WeightedReturn is the dot product of the weight vector and the per-asset
// expected returns.
func WeightedReturn(w, mu []float64) (float64, error) {
	if len(w) != len(mu) {
		return 0, fmt.Errorf("weight vector has %d entries but returns vector has %d", len(w), len(mu))
	}

	out := 0.0
	for i := range w {
		out += w[i] * mu[i]
	}
	return out, nil
}

// WeightedVariance evaluates the quadratic form w'Σw.
func WeightedVariance(w []float64, cov *mat.SymDense) (float64, error) {
	n, _ := cov.Dims()
	if len(w) != n {
		return 0, fmt.Errorf("weight vector has %d entries but covariance matrix is %dx%d", len(w), n, n)
	}

	out := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += w[i] * cov.At(i, j) * w[j]
		}
	}
	return out, nil
}

// MeanVariance is the classic mean-variance objective,
// riskTolerance * w'Σw - mu'w. Larger riskTolerance penalizes variance
// harder.
func MeanVariance(riskTolerance float64, cov *mat.SymDense, mu, w []float64) (float64, error) {
	variance, err := WeightedVariance(w, cov)
	if err != nil {
		return 0, err
	}
	ret, err := WeightedReturn(w, mu)
	if err != nil {
		return 0, err
	}
	return riskTolerance*variance - ret, nil
}
