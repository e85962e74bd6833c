package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/util"
)

// PriceRepository fetches historical bars and ticker info from a market
// data provider.
type PriceRepository interface {
	History(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
	Info(ctx context.Context, symbol string) ([]byte, error)
}

// NewYahooPriceRepository builds a repository against Yahoo Finance. At most
// requestsPerInterval requests are issued per interval, so bulk fetches do
// not trip Yahoo's rate limiter and come back with corrupt data.
func NewYahooPriceRepository(requestsPerInterval int, interval time.Duration) PriceRepository {
	if requestsPerInterval <= 0 {
		requestsPerInterval = 2
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &yahooPriceRepositoryHandler{
		requestsPerInterval: requestsPerInterval,
		interval:            interval,
	}
}

type yahooPriceRepositoryHandler struct {
	requestsPerInterval int
	interval            time.Duration

	mu          sync.Mutex
	windowStart time.Time
	windowCount int
}

// throttle blocks until the current request fits in the rate window.
func (h *yahooPriceRepositoryHandler) throttle(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if now.Sub(h.windowStart) >= h.interval {
		h.windowStart = now
		h.windowCount = 0
	}

	if h.windowCount >= h.requestsPerInterval {
		wait := h.interval - now.Sub(h.windowStart)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		h.windowStart = time.Now()
		h.windowCount = 0
	}

	h.windowCount++
	return nil
}

func (h *yahooPriceRepositoryHandler) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := h.throttle(ctx); err != nil {
		return nil, err
	}

	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []domain.Bar{}
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, domain.Bar{
			Date:     util.DayOf(time.Unix(int64(b.Timestamp), 0)),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return bars, nil
}

func (h *yahooPriceRepositoryHandler) Info(ctx context.Context, symbol string) ([]byte, error) {
	if err := h.throttle(ctx); err != nil {
		return nil, err
	}

	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	out, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote for %s: %w", symbol, err)
	}

	return out, nil
}
