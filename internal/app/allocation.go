package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wilhelmagren/finq/internal/domain"
)

type ComputeAllocationInput struct {
	// PriceMap holds the latest close per symbol.
	PriceMap     map[string]decimal.Decimal
	InvestAmount decimal.Decimal
	Weights      map[string]float64
}

// ComputeAllocation converts optimized weights into exact security
// quantities at the given prices. Fractional quantities are kept; rounding
// to tradable lots is the caller's concern.
func ComputeAllocation(in ComputeAllocationInput) (*domain.Holdings, error) {
	if in.InvestAmount.LessThan(decimal.NewFromFloat(0.001)) {
		return nil, fmt.Errorf("cannot compute allocation for amount %s", in.InvestAmount.String())
	}

	holdings := domain.NewHoldings()
	for symbol, weight := range in.Weights {
		price, ok := in.PriceMap[symbol]
		if !ok {
			return nil, fmt.Errorf("price map does not have %s", symbol)
		}
		if price.IsZero() {
			return nil, fmt.Errorf("price map has zero price for %s", symbol)
		}

		dollarsOfSymbol := in.InvestAmount.Mul(decimal.NewFromFloat(weight)).Round(3)
		holdings.Positions[symbol] = &domain.Position{
			Symbol:        symbol,
			ExactQuantity: dollarsOfSymbol.Div(price),
		}
	}

	return holdings, nil
}
