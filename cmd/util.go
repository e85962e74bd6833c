package cmd

import (
	"time"

	"github.com/wilhelmagren/finq/api"
	"github.com/wilhelmagren/finq/internal/app"
	"github.com/wilhelmagren/finq/internal/config"
	"github.com/wilhelmagren/finq/internal/repository"
	"github.com/wilhelmagren/finq/pkg/nasdaq"
	"github.com/wilhelmagren/finq/pkg/treasury"
)

// InitializeDependencies wires the price provider, the on-disk store and
// the pipeline service into an api handler, driven by config.
func InitializeDependencies(cfg *config.Config) (*api.ApiHandler, error) {
	store := repository.NewStore(cfg.DataDir)
	if err := store.Setup(); err != nil {
		return nil, err
	}

	priceRepository := repository.NewYahooPriceRepository(
		cfg.Dataset.RequestsPerSecond,
		time.Second,
	)
	nasdaqClient := nasdaq.NewClient()
	treasuryClient := treasury.NewClient()

	pipelineService := app.NewPipelineService(priceRepository, store, nasdaqClient, treasuryClient)

	return &api.ApiHandler{
		Pipeline: pipelineService,
		Nasdaq:   nasdaqClient,
	}, nil
}
