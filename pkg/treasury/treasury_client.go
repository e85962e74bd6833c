package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.ustreasuryyieldcurve.com/api/v1/yield_curve_snapshot"

// yieldKeys are the maturities published on the snapshot endpoint.
var yieldKeys = []string{
	"yield_1m",
	"yield_2m",
	"yield_3m",
	"yield_4m",
	"yield_6m",
	"yield_1y",
	"yield_2y",
	"yield_3y",
	"yield_5y",
	"yield_7y",
	"yield_10y",
	"yield_20y",
	"yield_30y",
}

// InterestRateMap holds annualized rates keyed by months to maturity,
// as fractions (0.0425 = 4.25%).
type InterestRateMap struct {
	Rates map[int]float64
}

// GetRate returns the rate for the given maturity, interpolating between
// the closest published maturities when there is no exact match.
func (im InterestRateMap) GetRate(monthsOut int) (float64, error) {
	v, ok := im.Rates[monthsOut]
	if ok {
		return v, nil
	}

	keys := []int{}
	for k := range im.Rates {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if len(keys) == 0 {
		return 0, fmt.Errorf("no rates in given map")
	}

	if monthsOut < keys[0] {
		return im.Rates[keys[0]], nil
	}
	if monthsOut > keys[len(keys)-1] {
		return im.Rates[keys[len(keys)-1]], nil
	}

	for i := 0; i < len(keys)-1; i++ {
		key1 := keys[i]
		key2 := keys[i+1]
		if monthsOut > key1 && monthsOut < key2 {
			return (im.Rates[key1] + im.Rates[key2]) / 2, nil
		}
	}

	return 0, fmt.Errorf("unable to compute rate for %d months out", monthsOut)
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	// lazy, in-memory cache keyed by snapshot date
	cache map[string][]byte
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
		cache:      map[string][]byte{},
	}
}

func maturityMonthsFromKey(in string) (int, error) {
	cleanedStr := strings.Replace(in, "yield_", "", 1)
	unit := string(cleanedStr[len(cleanedStr)-1])
	cleanedStr = cleanedStr[:len(cleanedStr)-1]
	months, err := strconv.Atoi(cleanedStr)
	if err != nil {
		return 0, err
	}

	if unit == "y" {
		months *= 12
	}

	return months, nil
}

func (c *Client) getBytes(ctx context.Context, date time.Time) ([]byte, error) {
	tStr := date.Format(time.DateOnly)

	if out, ok := c.cache[tStr]; ok {
		return out, nil
	}

	url := fmt.Sprintf("%s?date=%s&offset=0", c.BaseURL, tStr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	responseBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("received status code %d and failed to read body: %w", response.StatusCode, err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed with status code %d: %s", response.StatusCode, string(responseBytes))
	}

	if c.cache == nil {
		c.cache = map[string][]byte{}
	}
	c.cache[tStr] = responseBytes

	return responseBytes, nil
}

// GetYieldCurve fetches the treasury yield curve snapshot for the given
// date. Dates where all maturities are unpublished (holidays, future
// dates) fall back to the previous month.
func (c *Client) GetYieldCurve(ctx context.Context, date time.Time) (*InterestRateMap, error) {
	responseBytes, err := c.getBytes(ctx, date)
	if err != nil {
		return nil, err
	}

	responseBody := []map[string]interface{}{}
	if err := json.Unmarshal(responseBytes, &responseBody); err != nil {
		return nil, err
	}

	out := map[int]float64{}
	for _, response := range responseBody {
		for k, v := range response {
			for _, field := range yieldKeys {
				if k == field && v != nil {
					months, err := maturityMonthsFromKey(k)
					if err != nil {
						return nil, err
					}
					out[months] = v.(float64) / 100
				}
			}
		}
	}
	if len(out) == 0 {
		return c.GetYieldCurve(ctx, date.AddDate(0, -1, 0))
	}

	return &InterestRateMap{Rates: out}, nil
}
