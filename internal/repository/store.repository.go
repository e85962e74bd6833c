package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/logger"
)

// Store persists fetched ticker data locally: one CSV of bars per symbol
// under data/, one JSON blob of ticker info per symbol under info/.
type Store interface {
	Setup() error
	SaveAsset(asset *domain.Asset) error
	LoadAsset(symbol, name string) (*domain.Asset, error)
	SaveInfo(symbol string, info []byte) error
	HasAll(symbols []string) bool
	Root() string
}

func NewStore(root string) Store {
	return storeHandler{root: root}
}

type storeHandler struct {
	root string
}

type barRow struct {
	Date     string          `csv:"date"`
	Open     decimal.Decimal `csv:"open"`
	High     decimal.Decimal `csv:"high"`
	Low      decimal.Decimal `csv:"low"`
	Close    decimal.Decimal `csv:"close"`
	AdjClose decimal.Decimal `csv:"adj_close"`
	Volume   int64           `csv:"volume"`
}

func (s storeHandler) Root() string {
	return s.root
}

func (s storeHandler) dataPath(symbol string) string {
	return filepath.Join(s.root, "data", symbol+".csv")
}

func (s storeHandler) infoPath(symbol string) string {
	return filepath.Join(s.root, "info", symbol+".json")
}

// Setup creates the data/ and info/ directories. Errors if the root exists
// but is a regular file.
func (s storeHandler) Setup() error {
	if stat, err := os.Stat(s.root); err == nil {
		if !stat.IsDir() {
			return fmt.Errorf("save path %s is not a directory, maybe you provided a path to a file you want to create?", s.root)
		}
		logger.Warn("path %s already exists, will overwrite existing data", s.root)
	}

	for _, dir := range []string{filepath.Join(s.root, "data"), filepath.Join(s.root, "info")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}

func (s storeHandler) SaveAsset(asset *domain.Asset) error {
	rows := make([]barRow, 0, len(asset.Bars))
	for _, b := range asset.Bars {
		rows = append(rows, barRow{
			Date:     b.Date.Format(time.DateOnly),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   b.Volume,
		})
	}

	f, err := os.Create(s.dataPath(asset.Symbol))
	if err != nil {
		return fmt.Errorf("failed to create data file for %s: %w", asset.Symbol, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write bars for %s: %w", asset.Symbol, err)
	}

	return nil
}

func (s storeHandler) LoadAsset(symbol, name string) (*domain.Asset, error) {
	f, err := os.Open(s.dataPath(symbol))
	if err != nil {
		return nil, fmt.Errorf("no saved data for %s: %w", symbol, err)
	}
	defer f.Close()

	rows := []barRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in saved data for %s: %w", r.Date, symbol, err)
		}
		bars = append(bars, domain.Bar{
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		})
	}

	return domain.NewAsset(symbol, name, bars), nil
}

func (s storeHandler) SaveInfo(symbol string, info []byte) error {
	if err := os.WriteFile(s.infoPath(symbol), info, 0o644); err != nil {
		return fmt.Errorf("failed to write info for %s: %w", symbol, err)
	}
	return nil
}

// HasAll reports whether every symbol has both saved bars and saved info.
func (s storeHandler) HasAll(symbols []string) bool {
	for _, symbol := range symbols {
		if _, err := os.Stat(s.dataPath(symbol)); err != nil {
			return false
		}
		if _, err := os.Stat(s.infoPath(symbol)); err != nil {
			return false
		}
	}
	return true
}
