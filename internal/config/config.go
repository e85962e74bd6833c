package config

import "fmt"

// Config is the root configuration for the finq CLI and server.
type Config struct {
	// DataDir is where fetched ticker data is saved. Defaults to
	// ~/.finq/data.
	DataDir  string         `yaml:"data_dir"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Server   ServerConfig   `yaml:"server"`
}

// DatasetConfig describes which securities to fetch and how.
type DatasetConfig struct {
	Index   string   `yaml:"index"`
	Names   []string `yaml:"names"`
	Symbols []string `yaml:"symbols"`
	// Period is the price history lookback, e.g. "2y".
	Period string `yaml:"period"`
	Save   bool   `yaml:"save"`
	// Local skips the network and loads previously saved data.
	Local       bool `yaml:"local"`
	Concurrency int  `yaml:"concurrency"`
	// RequestsPerSecond throttles the price provider.
	RequestsPerSecond int `yaml:"requests_per_second"`
}

// OptimizeConfig describes the objective and optimizer settings.
type OptimizeConfig struct {
	// Objective is "mean-variance" or "sharpe".
	Objective string `yaml:"objective"`
	// Expression overrides Objective with a custom formula, e.g.
	// "1.5 * variance - expectedReturn".
	Expression    string  `yaml:"expression"`
	RiskTolerance float64 `yaml:"risk_tolerance"`
	RiskFreeRate  float64 `yaml:"risk_free_rate"`
	// RiskFreeRateSource set to "treasury" resolves the risk free rate
	// from the current 3-month treasury yield.
	RiskFreeRateSource string `yaml:"risk_free_rate_source"`
	// InvestAmount converts optimized weights into security quantities.
	InvestAmount  float64 `yaml:"invest_amount"`
	TradingDays   int     `yaml:"trading_days"`
	LowerBound    float64 `yaml:"lower_bound"`
	UpperBound    float64 `yaml:"upper_bound"`
	MaxIterations int     `yaml:"max_iterations"`
	RandomSamples int     `yaml:"random_samples"`
	Seed          uint64  `yaml:"seed"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// ValidateDataset checks that the dataset section names a resolvable
// universe. Commands that take the universe from flags or the request
// body skip this.
func (c Config) ValidateDataset() error {
	if c.Dataset.Index == "" && len(c.Dataset.Symbols) == 0 {
		return fmt.Errorf("dataset needs either an index or explicit symbols")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Dataset.Period == "" {
		c.Dataset.Period = "2y"
	}
	if c.Dataset.Concurrency <= 0 {
		c.Dataset.Concurrency = 4
	}
	if c.Dataset.RequestsPerSecond <= 0 {
		c.Dataset.RequestsPerSecond = 2
	}
	if c.Optimize.Objective == "" && c.Optimize.Expression == "" {
		c.Optimize.Objective = "mean-variance"
	}
	if c.Optimize.RiskTolerance == 0 {
		c.Optimize.RiskTolerance = 1
	}
	if c.Optimize.TradingDays <= 0 {
		c.Optimize.TradingDays = 252
	}
	if c.Optimize.MaxIterations <= 0 {
		c.Optimize.MaxIterations = 1000
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}
