package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/wilhelmagren/finq/internal/domain"
	"github.com/wilhelmagren/finq/internal/repository"
	"github.com/wilhelmagren/finq/internal/util"
	"github.com/wilhelmagren/finq/pkg/nasdaq"
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

func barsFromCloses(startDay int, closes ...float64) []domain.Bar {
	bars := []domain.Bar{}
	for i, c := range closes {
		bars = append(bars, domain.SyntheticBar(util.NewDate(2024, 1, startDay+i), c))
	}
	return bars
}

func newTestDataset(t *testing.T, prices repository.PriceRepository, names, symbols []string) *Dataset {
	t.Helper()
	ds, err := New(names, symbols, prices, nil, Config{})
	require.NoError(t, err)
	return ds
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New([]string{"a", "b"}, []string{"A"}, nil, nil, Config{})
	require.Error(t, err)

	_, err = New(nil, nil, nil, nil, Config{})
	require.Error(t, err)

	_, err = New([]string{"a"}, []string{"A"}, nil, nil, Config{Save: true})
	require.Error(t, err, "save without a store")
}

func TestFetchCollectsDateUnion(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
		"B": {
			domain.SyntheticBar(util.NewDate(2024, 1, 2), 50),
			domain.SyntheticBar(util.NewDate(2024, 1, 4), 52),
		},
	}}
	ds := newTestDataset(t, prices, []string{"Asset A", "Asset B"}, []string{"A", "B"})

	require.NoError(t, ds.Fetch(context.Background(), "1mo"))

	require.Equal(t, "", cmp.Diff([]time.Time{
		util.NewDate(2024, 1, 1),
		util.NewDate(2024, 1, 2),
		util.NewDate(2024, 1, 3),
		util.NewDate(2024, 1, 4),
	}, ds.Dates()))

	asset, err := ds.Asset("A")
	require.NoError(t, err)
	require.Equal(t, []float64{100, 101, 102}, asset.Closes())

	_, err = ds.Asset("C")
	require.Error(t, err)
}

func TestFetchRangeRejectsInvertedRange(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
	}}
	ds := newTestDataset(t, prices, []string{"Asset A"}, []string{"A"})

	err := ds.FetchRange(context.Background(), util.NewDate(2024, 2, 1), util.NewDate(2024, 1, 1))
	require.ErrorContains(t, err, "start date")

	// same calendar day is a valid range
	require.NoError(t, ds.FetchRange(context.Background(), util.NewDate(2024, 1, 1), util.NewDate(2024, 1, 1)))
}

func TestFixMissingInterior(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
		"B": {
			domain.SyntheticBar(util.NewDate(2024, 1, 1), 50),
			domain.SyntheticBar(util.NewDate(2024, 1, 3), 54),
		},
	}}
	ds := newTestDataset(t, prices, []string{"Asset A", "Asset B"}, []string{"A", "B"})
	require.NoError(t, ds.Fetch(context.Background(), "1mo"))

	require.Error(t, ds.Verify(), "verify should fail before repair")

	repaired, err := ds.FixMissing()
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, repaired)
	require.NoError(t, ds.Verify())

	b, err := ds.Asset("B")
	require.NoError(t, err)
	require.Equal(t, []float64{50, 52, 54}, b.Closes())
	require.Equal(t, int64(0), b.Bars[1].Volume, "synthetic bars carry no volume")
}

func TestFixMissingTailExtrapolates(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
		"B": barsFromCloses(1, 50, 53),
	}}
	ds := newTestDataset(t, prices, []string{"Asset A", "Asset B"}, []string{"A", "B"})
	require.NoError(t, ds.Fetch(context.Background(), "1mo"))

	_, err := ds.FixMissing()
	require.NoError(t, err)

	b, err := ds.Asset("B")
	require.NoError(t, err)
	// last close extends the 50 -> 53 trend
	require.Equal(t, []float64{50, 53, 56}, b.Closes())
}

func TestFixMissingHeadExtrapolates(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
		"B": {
			domain.SyntheticBar(util.NewDate(2024, 1, 2), 53),
			domain.SyntheticBar(util.NewDate(2024, 1, 3), 56),
		},
	}}
	ds := newTestDataset(t, prices, []string{"Asset A", "Asset B"}, []string{"A", "B"})
	require.NoError(t, ds.Fetch(context.Background(), "1mo"))

	_, err := ds.FixMissing()
	require.NoError(t, err)

	b, err := ds.Asset("B")
	require.NoError(t, err)
	// first close backs out the 53 -> 56 trend
	require.Equal(t, []float64{50, 53, 56}, b.Closes())
}

func TestCloseMatrix(t *testing.T) {
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
		"B": barsFromCloses(1, 50, 52, 54),
	}}
	ds := newTestDataset(t, prices, []string{"Asset A", "Asset B"}, []string{"A", "B"})
	require.NoError(t, ds.Fetch(context.Background(), "1mo"))

	m, err := ds.CloseMatrix()
	require.NoError(t, err)

	rows, cols := m.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	require.Equal(t, 100.0, m.At(0, 0))
	require.Equal(t, 54.0, m.At(1, 2))
}

func TestFetchWithSaveAndLoad(t *testing.T) {
	store := repository.NewStore(t.TempDir())
	prices := fakePriceRepository{bars: map[string][]domain.Bar{
		"A": barsFromCloses(1, 100, 101, 102),
	}}

	ds, err := New([]string{"Asset A"}, []string{"A"}, prices, store, Config{Save: true})
	require.NoError(t, err)
	require.NoError(t, ds.Fetch(context.Background(), "1mo"))
	require.True(t, store.HasAll([]string{"A"}))

	// a fresh dataset over the same store loads without a price repository
	loaded, err := New([]string{"Asset A"}, []string{"A"}, nil, store, Config{})
	require.NoError(t, err)
	require.NoError(t, loaded.Load())

	asset, err := loaded.Asset("A")
	require.NoError(t, err)
	require.Equal(t, []float64{100, 101, 102}, asset.Closes())
	require.Equal(t, "", cmp.Diff(ds.Dates(), loaded.Dates()))
}

func TestParsePeriod(t *testing.T) {
	now := util.NewDate(2024, 3, 15)

	tcs := []struct {
		period   string
		expected time.Time
	}{
		{"30d", util.NewDate(2024, 2, 14)},
		{"2w", util.NewDate(2024, 3, 1)},
		{"3mo", util.NewDate(2023, 12, 15)},
		{"6m", util.NewDate(2023, 9, 15)},
		{"2y", util.NewDate(2022, 3, 15)},
		{"max", util.NewDate(1970, 1, 1)},
	}
	for _, tc := range tcs {
		t.Run(tc.period, func(t *testing.T) {
			start, err := ParsePeriod(tc.period, now)
			require.NoError(t, err)
			require.Equal(t, tc.expected, start)
		})
	}

	for _, bad := range []string{"", "y", "-1y", "2x", "abc"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := ParsePeriod(bad, now)
			require.Error(t, err)
		})
	}
}

func TestCustom(t *testing.T) {
	_, err := Custom(context.Background(), nil, nil, "", nil, nil, nil, Config{})
	require.Error(t, err)

	ds, err := Custom(context.Background(), []string{"Asset A"}, []string{"A"}, "", nil, nil, nil, Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, ds.Tickers())
}

func TestOMXS30(t *testing.T) {
	ds, err := OMXS30(nil, nil, Config{})
	require.NoError(t, err)
	require.Equal(t, 30, ds.Len())
	require.Contains(t, ds.Tickers(), "ERIC-B.ST")
}

func TestFromIndex(t *testing.T) {
	export := strings.Join([]string{
		"OMXSPI weightings",
		"",
		"As of date,2024-01-02",
		"",
		"Company Name,Security Symbol,Weight",
		"Ericsson B,ERIC B,3.1",
		"Volvo B,VOLV B,5.2",
	}, "\r\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, export)
	}))
	defer server.Close()

	client := &nasdaq.Client{HTTPClient: server.Client(), BaseURL: server.URL + "/"}

	ds, err := OMXSPI(context.Background(), client, nil, nil, Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"ERIC-B.ST", "VOLV-B.ST"}, ds.Tickers())
	require.Equal(t, []string{"Ericsson B", "Volvo B"}, ds.Names())

	_, err = FromIndex(context.Background(), "", client, nil, nil, Config{})
	require.Error(t, err)
}
