package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Position is a quantity of one security.
type Position struct {
	Symbol        string
	ExactQuantity decimal.Decimal
}

// Holdings is a concrete set of positions, the buy-side counterpart of a
// weight vector.
type Holdings struct {
	Positions map[string]*Position
	Cash      decimal.Decimal
}

func NewHoldings() *Holdings {
	return &Holdings{
		Positions: map[string]*Position{},
		Cash:      decimal.Zero,
	}
}

func (h Holdings) HeldSymbols() []string {
	symbols := []string{}
	for symbol := range h.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (h Holdings) TotalValue(priceMap map[string]decimal.Decimal) (decimal.Decimal, error) {
	totalValue := h.Cash
	for symbol, position := range h.Positions {
		price, ok := priceMap[symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("cannot compute holdings total value: price map missing %s", symbol)
		}
		totalValue = totalValue.Add(position.ExactQuantity.Mul(price))
	}

	return totalValue, nil
}
