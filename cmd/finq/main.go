package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wilhelmagren/finq/cmd"
	"github.com/wilhelmagren/finq/internal/app"
	"github.com/wilhelmagren/finq/internal/config"
	"github.com/wilhelmagren/finq/internal/logger"
)

var (
	configPath string
	dataDir    string

	index       string
	names       []string
	symbols     []string
	period      string
	save        bool
	local       bool
	concurrency int

	objective          string
	expression         string
	riskTolerance      float64
	riskFreeRate       float64
	riskFreeRateSource string
	investAmount       float64
	lowerBound         float64
	upperBound         float64
	maxIterations      int
	randomSamples      int
	seed               uint64

	port int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finq",
		Short:         "fetch price data and optimize portfolio weights",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a yaml config file")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for saved ticker data (default ~/.finq/data)")

	root.AddCommand(fetchCmd(), optimizeCmd(), serveCmd())
	return root
}

func addUniverseFlags(c *cobra.Command) {
	c.Flags().StringVarP(&index, "index", "i", "", "index to resolve constituents for, e.g. OMXS30")
	c.Flags().StringSliceVarP(&symbols, "symbols", "s", nil, "explicit ticker symbols")
	c.Flags().StringSliceVarP(&names, "names", "n", nil, "display names for the symbols")
	c.Flags().StringVarP(&period, "period", "p", "", "price history lookback, e.g. 30d, 6mo, 2y, max")
	c.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent symbol fetches")
}

// loadConfig merges CLI flags over the yaml config, flags winning when set.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	flags := c.Flags()
	if flags.Changed("index") {
		cfg.Dataset.Index = index
	}
	if flags.Changed("symbols") {
		cfg.Dataset.Symbols = symbols
	}
	if flags.Changed("names") {
		cfg.Dataset.Names = names
	}
	if flags.Changed("period") {
		cfg.Dataset.Period = period
	}
	if flags.Changed("concurrency") {
		cfg.Dataset.Concurrency = concurrency
	}
	if flags.Changed("save") {
		cfg.Dataset.Save = save
	}
	if flags.Changed("local") {
		cfg.Dataset.Local = local
	}
	if flags.Changed("objective") {
		cfg.Optimize.Objective = objective
	}
	if flags.Changed("expression") {
		cfg.Optimize.Expression = expression
	}
	if flags.Changed("risk-tolerance") {
		cfg.Optimize.RiskTolerance = riskTolerance
	}
	if flags.Changed("risk-free-rate") {
		cfg.Optimize.RiskFreeRate = riskFreeRate
	}
	if flags.Changed("risk-free-rate-source") {
		cfg.Optimize.RiskFreeRateSource = riskFreeRateSource
	}
	if flags.Changed("invest") {
		cfg.Optimize.InvestAmount = investAmount
	}
	if flags.Changed("lower-bound") {
		cfg.Optimize.LowerBound = lowerBound
	}
	if flags.Changed("upper-bound") {
		cfg.Optimize.UpperBound = upperBound
	}
	if flags.Changed("max-iterations") {
		cfg.Optimize.MaxIterations = maxIterations
	}
	if flags.Changed("random-samples") {
		cfg.Optimize.RandomSamples = randomSamples
	}
	if flags.Changed("seed") {
		cfg.Optimize.Seed = seed
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func datasetInput(cfg *config.Config) app.DatasetInput {
	return app.DatasetInput{
		Index:            cfg.Dataset.Index,
		Names:            cfg.Dataset.Names,
		Symbols:          cfg.Dataset.Symbols,
		Period:           cfg.Dataset.Period,
		Save:             cfg.Dataset.Save,
		Local:            cfg.Dataset.Local,
		FetchConcurrency: cfg.Dataset.Concurrency,
	}
}

func fetchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "fetch",
		Short: "fetch price history and save it to the data directory",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.ValidateDataset(); err != nil {
				return err
			}
			// fetching without saving is a no-op
			cfg.Dataset.Save = true

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}

			ds, err := handler.Pipeline.BuildDataset(c.Context(), datasetInput(cfg))
			if err != nil {
				return err
			}

			repaired, err := ds.FixMissing()
			if err != nil {
				return err
			}
			if len(repaired) > 0 {
				logger.Warn("repaired missing values for %d symbol(s): %v", len(repaired), repaired)
			}
			if err := ds.Verify(); err != nil {
				return err
			}

			fmt.Printf("saved %d symbols over %d dates to %s\n",
				len(ds.Tickers()), len(ds.Dates()), cfg.DataDir)
			return nil
		},
	}
	addUniverseFlags(c)
	return c
}

func optimizeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "optimize",
		Short: "fetch a dataset and optimize portfolio weights over it",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.ValidateDataset(); err != nil {
				return err
			}

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}

			report, err := handler.Pipeline.Run(c.Context(), app.RunInput{
				Dataset: datasetInput(cfg),
				Objective: app.ObjectiveSpec{
					Name:          cfg.Optimize.Objective,
					Expression:    cfg.Optimize.Expression,
					RiskTolerance: cfg.Optimize.RiskTolerance,
				},
				RiskFreeRate:       cfg.Optimize.RiskFreeRate,
				RiskFreeRateSource: cfg.Optimize.RiskFreeRateSource,
				InvestAmount:       cfg.Optimize.InvestAmount,
				TradingDays:        cfg.Optimize.TradingDays,
				Seed:               cfg.Optimize.Seed,
				LowerBound:         cfg.Optimize.LowerBound,
				UpperBound:         cfg.Optimize.UpperBound,
				MaxIterations:      cfg.Optimize.MaxIterations,
				RandomSamples:      cfg.Optimize.RandomSamples,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	addUniverseFlags(c)
	c.Flags().BoolVar(&save, "save", false, "save fetched data to the data directory")
	c.Flags().BoolVar(&local, "local", false, "load previously saved data instead of fetching")
	c.Flags().StringVarP(&objective, "objective", "o", "", `built-in objective, "mean-variance" or "sharpe"`)
	c.Flags().StringVarP(&expression, "expression", "e", "", `custom objective, e.g. "1.5 * variance - expectedReturn"`)
	c.Flags().Float64Var(&riskTolerance, "risk-tolerance", 0, "risk tolerance for the mean-variance objective")
	c.Flags().Float64Var(&riskFreeRate, "risk-free-rate", 0, "periodic risk free rate")
	c.Flags().StringVar(&riskFreeRateSource, "risk-free-rate-source", "", `set to "treasury" to use the current 3-month treasury yield`)
	c.Flags().Float64Var(&investAmount, "invest", 0, "amount to convert the optimized weights into security quantities for")
	c.Flags().Float64Var(&lowerBound, "lower-bound", 0, "per-asset minimum weight")
	c.Flags().Float64Var(&upperBound, "upper-bound", 0, "per-asset maximum weight")
	c.Flags().IntVar(&maxIterations, "max-iterations", 0, "optimizer iteration cap")
	c.Flags().IntVar(&randomSamples, "random-samples", 0, "random portfolios to sample alongside the optimum")
	c.Flags().Uint64Var(&seed, "seed", 0, "rng seed for the initial weights")
	return c
}

func serveCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "start the http api",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}

			logger.Info("starting api on port %d", cfg.Server.Port)
			return handler.StartApi(cfg.Server.Port)
		},
	}
	c.Flags().IntVar(&port, "port", 0, "port to serve the api on")
	return c
}
