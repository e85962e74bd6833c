package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/logger"
	"github.com/wilhelmagren/finq/internal/repository"
	"github.com/wilhelmagren/finq/internal/util"
)

// MissingValuesStrategy controls how FixMissing repairs gaps.
type MissingValuesStrategy string

const (
	// Interpolate fills interior gaps with the midpoint of the neighboring
	// closes, and extrapolates linearly at either edge of the series.
	Interpolate MissingValuesStrategy = "interpolate"
)

type Config struct {
	// Save persists fetched bars and ticker info through the store.
	Save bool
	// MissingValues picks the repair strategy. Defaults to Interpolate.
	MissingValues MissingValuesStrategy
	// FetchConcurrency bounds how many symbols are fetched at once.
	FetchConcurrency int
}

func (c *Config) applyDefaults() {
	if c.MissingValues == "" {
		c.MissingValues = Interpolate
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
}

// Dataset assembles aligned price histories for a set of tradable
// securities.
type Dataset struct {
	names   []string
	symbols []string
	cfg     Config

	prices repository.PriceRepository
	store  repository.Store

	mu     sync.Mutex
	assets map[string]*domain.Asset
	dates  []time.Time
}

// New builds a Dataset over the given securities. names and symbols are
// parallel slices.
func New(names, symbols []string, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	if len(names) != len(symbols) {
		return nil, fmt.Errorf("number of names does not match the list of symbols, %d != %d", len(names), len(symbols))
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("cannot build a dataset with no symbols")
	}
	cfg.applyDefaults()

	if cfg.Save && store == nil {
		return nil, fmt.Errorf("save requested but no store configured")
	}

	return &Dataset{
		names:   names,
		symbols: symbols,
		cfg:     cfg,
		prices:  prices,
		store:   store,
		assets:  map[string]*domain.Asset{},
	}, nil
}

func (d *Dataset) Len() int {
	return len(d.symbols)
}

func (d *Dataset) Tickers() []string {
	out := make([]string, len(d.symbols))
	copy(out, d.symbols)
	return out
}

func (d *Dataset) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Dates returns the union of all observed trading dates, in order.
func (d *Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

func (d *Dataset) Asset(symbol string) (*domain.Asset, error) {
	asset, ok := d.assets[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %s, have you fetched the dataset?", symbol)
	}
	return asset, nil
}

// Assets returns the assets in symbol order.
func (d *Dataset) Assets() []*domain.Asset {
	out := make([]*domain.Asset, 0, len(d.symbols))
	for _, symbol := range d.symbols {
		if asset, ok := d.assets[symbol]; ok {
			out = append(out, asset)
		}
	}
	return out
}

// ParsePeriod converts a lookback like "3mo", "2y" or "30d" into a start
// time relative to now.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "max" {
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(period, "%d%s", &n, &unit); err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: %w", period, err)
	}
	if n <= 0 {
		return time.Time{}, fmt.Errorf("invalid period %q: lookback must be positive", period)
	}

	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "w", "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "m", "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	}

	return time.Time{}, fmt.Errorf("invalid period %q: unknown unit %q", period, unit)
}

// Fetch pulls bars for every symbol over the lookback period and collects
// the union of observed dates. When Save is set, bars and ticker info are
// persisted through the store as they arrive.
func (d *Dataset) Fetch(ctx context.Context, period string) error {
	end := time.Now()
	start, err := ParsePeriod(period, end)
	if err != nil {
		return err
	}
	return d.FetchRange(ctx, start, end)
}

func (d *Dataset) FetchRange(ctx context.Context, start, end time.Time) error {
	if d.prices == nil {
		return fmt.Errorf("dataset has no price repository configured")
	}
	if !util.DateLte(start, end) {
		return fmt.Errorf("invalid range, start date %v is after end date %v", start, end)
	}

	if d.cfg.Save {
		if err := d.store.Setup(); err != nil {
			return err
		}
		logger.Info("will save fetched data to path %s", d.store.Root())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.FetchConcurrency)

	for i := range d.symbols {
		symbol, name := d.symbols[i], d.names[i]
		g.Go(func() error {
			logger.Debug("fetching %s data from Yahoo! Finance", symbol)
			bars, err := d.prices.History(gctx, symbol, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
			}
			if len(bars) == 0 {
				return fmt.Errorf("no bars returned for %s between %v and %v", symbol, start, end)
			}

			asset := domain.NewAsset(symbol, name, bars)

			if d.cfg.Save {
				if err := d.store.SaveAsset(asset); err != nil {
					return err
				}
				info, err := d.prices.Info(gctx, symbol)
				if err != nil {
					return err
				}
				if err := d.store.SaveInfo(symbol, info); err != nil {
					return err
				}
			}

			d.mu.Lock()
			d.assets[symbol] = asset
			d.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	d.collectDates()
	return nil
}

// Load rebuilds the dataset from the local store instead of the network.
func (d *Dataset) Load() error {
	if d.store == nil {
		return fmt.Errorf("dataset has no store configured")
	}
	if !d.store.HasAll(d.symbols) {
		return fmt.Errorf("not all tickers are saved under %s, fetch the dataset first", d.store.Root())
	}

	for i, symbol := range d.symbols {
		asset, err := d.store.LoadAsset(symbol, d.names[i])
		if err != nil {
			return err
		}
		d.assets[symbol] = asset
	}

	d.collectDates()
	return nil
}

func (d *Dataset) collectDates() {
	seen := map[time.Time]bool{}
	dates := []time.Time{}
	for _, asset := range d.assets {
		for _, bar := range asset.Bars {
			if !seen[bar.Date] {
				seen[bar.Date] = true
				dates = append(dates, bar.Date)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	d.dates = dates
}

// FixMissing repairs every symbol whose series misses dates present in the
// union. It returns the symbols that had gaps.
func (d *Dataset) FixMissing() ([]string, error) {
	if d.cfg.MissingValues != Interpolate {
		return nil, fmt.Errorf("unknown missing values strategy %q", d.cfg.MissingValues)
	}
	logger.Info("using missing values strategy: %s", d.cfg.MissingValues)

	repaired := []string{}
	for _, symbol := range d.symbols {
		asset, err := d.Asset(symbol)
		if err != nil {
			return nil, err
		}

		gaps, err := repairAsset(asset, d.dates)
		if err != nil {
			return nil, fmt.Errorf("failed to fix missing values for %s: %w", symbol, err)
		}
		if gaps {
			repaired = append(repaired, symbol)
		}
	}

	if len(repaired) > 0 {
		logger.Info("the following symbols had missing data: %s", strings.Join(repaired, ","))
	}
	return repaired, nil
}

// repairAsset inserts synthetic bars for each date the asset misses.
// Interior gaps take the midpoint of the nearest observed closes; a gap at
// either edge extrapolates the local trend from the two closest closes.
func repairAsset(asset *domain.Asset, dates []time.Time) (bool, error) {
	have := map[time.Time]float64{}
	for _, bar := range asset.Bars {
		have[bar.Date] = bar.Close.InexactFloat64()
	}

	prevClose := func(idx int) (float64, int, bool) {
		for i := idx - 1; i >= 0; i-- {
			if v, ok := have[dates[i]]; ok {
				return v, i, true
			}
		}
		return 0, 0, false
	}
	nextClose := func(idx int) (float64, int, bool) {
		for i := idx + 1; i < len(dates); i++ {
			if v, ok := have[dates[i]]; ok {
				return v, i, true
			}
		}
		return 0, 0, false
	}

	gaps := false
	for idx, date := range dates {
		if _, ok := have[date]; ok {
			continue
		}
		gaps = true

		prev, prevIdx, hasPrev := prevClose(idx)
		next, nextIdx, hasNext := nextClose(idx)

		var interpolated float64
		switch {
		case hasPrev && hasNext:
			interpolated = (prev + next) / 2
		case hasPrev:
			// missing at the tail, extend the trend of the two prior closes
			prev2, _, ok := prevClose(prevIdx)
			if !ok {
				return false, fmt.Errorf("need at least two observed closes before %v to extrapolate", date)
			}
			interpolated = prev + (prev - prev2)
		case hasNext:
			// missing at the head, back out the trend of the two next closes
			next2, _, ok := nextClose(nextIdx)
			if !ok {
				return false, fmt.Errorf("need at least two observed closes after %v to extrapolate", date)
			}
			interpolated = next - (next2 - next)
		default:
			return false, fmt.Errorf("no observed closes to interpolate from")
		}

		have[date] = interpolated
		asset.Bars = append(asset.Bars, domain.SyntheticBar(date, interpolated))
	}

	asset.SortBars()
	return gaps, nil
}

// Verify errors if any symbol's dates still differ from the union.
func (d *Dataset) Verify() error {
	union := map[time.Time]bool{}
	for _, date := range d.dates {
		union[date] = true
	}

	for _, symbol := range d.symbols {
		asset, err := d.Asset(symbol)
		if err != nil {
			return err
		}
		if len(asset.Bars) != len(d.dates) {
			return fmt.Errorf("there is a difference in dates for symbol %s, have you tried fixing missing values prior to verifying?", symbol)
		}
		for _, bar := range asset.Bars {
			if !union[bar.Date] {
				return fmt.Errorf("symbol %s has a date %v outside the dataset, have you tried fixing missing values prior to verifying?", symbol, bar.Date)
			}
		}
	}

	return nil
}

// CloseMatrix lays the dataset out as an assets x days matrix of closes,
// rows in symbol order.
func (d *Dataset) CloseMatrix() (*mat.Dense, error) {
	if err := d.Verify(); err != nil {
		return nil, err
	}

	m := mat.NewDense(len(d.symbols), len(d.dates), nil)
	for i, symbol := range d.symbols {
		m.SetRow(i, d.assets[symbol].Closes())
	}
	return m, nil
}
