package nasdaq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const weightingsExport = `OMXS30 Index Weightings
As of trade date
Start of day

Company Name,Security Symbol,Market Value
Ericsson B,ERIC B,123456
Volvo B,VOLV B,234567
,,
ABB Ltd,ABB,345678
`

func TestConstituents(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(weightingsExport))
	}))
	defer server.Close()

	client := NewClient()
	client.BaseURL = server.URL + "/Index/ExportWeightings/"

	names, symbols, err := client.Constituents(context.Background(), "OMXS30", StockholmSymbolFilter)
	require.NoError(t, err)

	require.Equal(t, "/Index/ExportWeightings/OMXS30", gotPath)
	require.Equal(t, []string{"SOD"}, gotQuery["timeOfDay"])
	require.Len(t, gotQuery["tradeDate"], 1)

	require.Equal(t, []string{"Ericsson B", "Volvo B", "ABB Ltd"}, names)
	require.Equal(t, []string{"ERIC-B.ST", "VOLV-B.ST", "ABB.ST"}, symbols)
}

func TestConstituentsNoFilterKeepsSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(weightingsExport))
	}))
	defer server.Close()

	client := NewClient()
	client.BaseURL = server.URL + "/"

	_, symbols, err := client.Constituents(context.Background(), "NDX", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"ERIC B", "VOLV B", "ABB"}, symbols)
}

func TestIsStockholmIndex(t *testing.T) {
	require.True(t, IsStockholmIndex("OMXS30"))
	require.True(t, IsStockholmIndex("OMXSPI"))
	require.True(t, IsStockholmIndex("OMXSBESGNI"))
	require.False(t, IsStockholmIndex("NDX"))
	require.False(t, IsStockholmIndex(""))
}

func TestConstituentsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient()
	client.BaseURL = server.URL + "/"

	_, _, err := client.Constituents(context.Background(), "OMXS30", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestConstituentsEmptyExport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("line1\nline2\nline3\n\nCompany Name,Security Symbol,Market Value\n"))
	}))
	defer server.Close()

	client := NewClient()
	client.BaseURL = server.URL + "/"

	_, _, err := client.Constituents(context.Background(), "OMXS30", nil)
	require.Error(t, err)
}
