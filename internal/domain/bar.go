package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLC observation for a symbol on a trading day. Dates are
// normalized to UTC midnight.
type Bar struct {
	Date     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
}

// SyntheticBar builds a repaired bar where every price field carries the
// interpolated close. Gap fills have no volume.
func SyntheticBar(date time.Time, close float64) Bar {
	d := decimal.NewFromFloat(close)
	return Bar{
		Date:     date,
		Open:     d,
		High:     d,
		Low:      d,
		Close:    d,
		AdjClose: d,
	}
}
