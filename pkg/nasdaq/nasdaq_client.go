package nasdaq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wilhelmagren/finq/internal/logger"
	"github.com/wilhelmagren/finq/internal/util"
)

const defaultBaseURL = "https://indexes.nasdaqomx.com/Index/ExportWeightings/"

// headerRows is the number of preamble rows in the weightings export before
// the column header line.
const headerRows = 4

// ImplementedIndices are the indices known to resolve on the weightings
// export endpoint. Other indices are still attempted, with a warning.
var ImplementedIndices = []string{
	"NDX",
	"OMXS30",
	"OMXSBESGNI",
	"OMXSPI",
}

// SymbolFilter rewrites an exchange security symbol into the ticker used by
// the price provider.
type SymbolFilter func(string) string

// StockholmSymbolFilter maps OMX security symbols to Yahoo's Stockholm
// listing tickers, e.g. "ERIC B" -> "ERIC-B.ST".
func StockholmSymbolFilter(s string) string {
	return strings.ReplaceAll(s, " ", "-") + ".ST"
}

var stockholmIndices = map[string]bool{
	"OMXS30":     true,
	"OMXSBESGNI": true,
	"OMXSPI":     true,
}

// IsStockholmIndex reports whether the index's constituents trade on the
// Stockholm exchange and need the Stockholm symbol filter.
func IsStockholmIndex(index string) bool {
	return stockholmIndices[index]
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
	}
}

type constituentRow struct {
	Name   string `csv:"Company Name"`
	Symbol string `csv:"Security Symbol"`
}

func isImplemented(index string) bool {
	for _, i := range ImplementedIndices {
		if i == index {
			return true
		}
	}
	return false
}

// Constituents fetches the (names, symbols) that make up the given index,
// as of the most recent published trade date. The filter is applied to
// each security symbol; nil keeps symbols as-is.
func (c *Client) Constituents(ctx context.Context, index string, filter SymbolFilter) ([]string, []string, error) {
	if !isImplemented(index) {
		logger.Warn("`%s` is not a natively implemented index, but will attempt to fetch from NASDAQ...", index)
	}
	if filter == nil {
		filter = func(s string) string { return s }
	}

	tradeDate := util.LastWeekday(time.Now())

	endpoint := c.BaseURL + index
	params := url.Values{}
	params.Set("tradeDate", tradeDate.Format("2006-01-02")+"T00:00:00.000")
	params.Set("timeOfDay", "SOD")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/csv")

	logger.Info("performing GET request to: %s", endpoint)

	response, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get index components from nasdaq: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("received status code %d and failed to read body: %w", response.StatusCode, err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("could not get the index components from nasdaq, status code %d", response.StatusCode)
	}

	names, symbols, err := parseWeightings(string(body), filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s weightings export: %w", index, err)
	}
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("weightings export for %s contained no constituents", index)
	}

	return names, symbols, nil
}

func parseWeightings(body string, filter SymbolFilter) ([]string, []string, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) <= headerRows {
		return nil, nil, fmt.Errorf("export has %d line(s), expected %d header rows plus data", len(lines), headerRows)
	}

	rows := []constituentRow{}
	if err := gocsv.UnmarshalString(strings.Join(lines[headerRows:], "\n"), &rows); err != nil {
		return nil, nil, err
	}

	names := []string{}
	symbols := []string{}
	for _, r := range rows {
		if r.Name == "" || r.Symbol == "" {
			continue
		}
		names = append(names, r.Name)
		symbols = append(symbols, filter(r.Symbol))
	}

	return names, symbols, nil
}
