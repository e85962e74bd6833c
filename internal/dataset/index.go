package dataset

import (
	"context"
	"fmt"

	"github.com/wilhelmagren/finq/internal/repository"
	"github.com/wilhelmagren/finq/pkg/nasdaq"
)

var omxs30Names = []string{
	"ABB Ltd",
	"Alfa Laval",
	"Autoliv SDB",
	"ASSA ABLOY B",
	"Atlas Copco A",
	"Atlas Copco B",
	"AstraZeneca",
	"Boliden",
	"Electrolux B",
	"Ericsson B",
	"Essity B",
	"Evolution",
	"Getinge B",
	"Hexagon B",
	"Hennes & Mauritz B",
	"Investor B",
	"Kinnevik B",
	"Nordea Bank Abp",
	"NIBE Industrier B",
	"Sandvik",
	"Samhällsbyggnadbo.i Norden AB",
	"SCA B",
	"SEB A",
	"Sv. Handelsbanken A",
	"Sinch",
	"SKF B",
	"Swedbank A",
	"Tele2 B",
	"Telia Company",
	"Volvo B",
}

var omxs30Symbols = []string{
	"ABB.ST",
	"ALFA.ST",
	"ALIV-SDB.ST",
	"ASSA-B.ST",
	"ATCO-A.ST",
	"ATCO-B.ST",
	"AZN.ST",
	"BOL.ST",
	"ELUX-B.ST",
	"ERIC-B.ST",
	"ESSITY-B.ST",
	"EVO.ST",
	"GETI-B.ST",
	"HEXA-B.ST",
	"HM-B.ST",
	"INVE-B.ST",
	"KINV-B.ST",
	"NDA-SE.ST",
	"NIBE-B.ST",
	"SAND.ST",
	"SBB-B.ST",
	"SCA-B.ST",
	"SEB-A.ST",
	"SHB-A.ST",
	"SINCH.ST",
	"SKF-B.ST",
	"SWED-A.ST",
	"TEL2-B.ST",
	"TELIA.ST",
	"VOLV-B.ST",
}

// OMXS30 builds a dataset over the bundled large-cap Stockholm index
// constituents, without hitting the constituents endpoint.
func OMXS30(prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	return New(omxs30Names, omxs30Symbols, prices, store, cfg)
}

// NDX builds a dataset over the current Nasdaq-100 constituents.
func NDX(ctx context.Context, client *nasdaq.Client, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	return FromIndex(ctx, "NDX", client, prices, store, cfg)
}

// OMXSPI builds a dataset over the current Stockholm all-share constituents.
func OMXSPI(ctx context.Context, client *nasdaq.Client, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	return FromIndex(ctx, "OMXSPI", client, prices, store, cfg)
}

// OMXSBESGNI builds a dataset over the current Stockholm benchmark ESG
// constituents.
func OMXSBESGNI(ctx context.Context, client *nasdaq.Client, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	return FromIndex(ctx, "OMXSBESGNI", client, prices, store, cfg)
}

// FromIndex resolves an index's constituents through the nasdaq client and
// builds a dataset over them.
func FromIndex(ctx context.Context, index string, client *nasdaq.Client, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	if index == "" {
		return nil, fmt.Errorf("no index given")
	}

	var filter nasdaq.SymbolFilter
	if nasdaq.IsStockholmIndex(index) {
		filter = nasdaq.StockholmSymbolFilter
	}

	names, symbols, err := client.Constituents(ctx, index, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve constituents for %s: %w", index, err)
	}

	return New(names, symbols, prices, store, cfg)
}

// Custom builds a dataset from explicit names and symbols, or from an index
// when both are empty.
func Custom(ctx context.Context, names, symbols []string, index string, client *nasdaq.Client, prices repository.PriceRepository, store repository.Store, cfg Config) (*Dataset, error) {
	if len(names) == 0 && len(symbols) == 0 && index == "" {
		return nil, fmt.Errorf("one of names+symbols or index must be given")
	}

	if index != "" {
		return FromIndex(ctx, index, client, prices, store, cfg)
	}

	return New(names, symbols, prices, store, cfg)
}
