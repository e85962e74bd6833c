package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/wilhelmagren/finq/internal/app"
)

type optimizeRequest struct {
	Index   string   `json:"index"`
	Names   []string `json:"names"`
	Symbols []string `json:"symbols"`
	Period  string   `json:"period"`

	Objective          string  `json:"objective"`
	Expression         string  `json:"expression"`
	RiskTolerance      float64 `json:"riskTolerance"`
	RiskFreeRate       float64 `json:"riskFreeRate"`
	RiskFreeRateSource string  `json:"riskFreeRateSource"`
	InvestAmount       float64 `json:"investAmount"`
	LowerBound         float64 `json:"lowerBound"`
	UpperBound         float64 `json:"upperBound"`
	MaxIterations      int     `json:"maxIterations"`
	RandomSamples      int     `json:"randomSamples"`
	Seed               uint64  `json:"seed"`
}

func (m ApiHandler) optimize(c *gin.Context) {
	var requestBody optimizeRequest

	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, 400)
		return
	}

	if requestBody.Index == "" && len(requestBody.Symbols) == 0 {
		returnErrorJsonCode(fmt.Errorf("either index or symbols must be given"), c, 400)
		return
	}

	period := requestBody.Period
	if period == "" {
		period = "1y"
	}

	report, err := m.Pipeline.Run(c.Request.Context(), app.RunInput{
		Dataset: app.DatasetInput{
			Index:   requestBody.Index,
			Names:   requestBody.Names,
			Symbols: requestBody.Symbols,
			Period:  period,
		},
		Objective: app.ObjectiveSpec{
			Name:          requestBody.Objective,
			Expression:    requestBody.Expression,
			RiskTolerance: requestBody.RiskTolerance,
		},
		RiskFreeRate:       requestBody.RiskFreeRate,
		RiskFreeRateSource: requestBody.RiskFreeRateSource,
		InvestAmount:       requestBody.InvestAmount,
		LowerBound:         requestBody.LowerBound,
		UpperBound:         requestBody.UpperBound,
		MaxIterations:      requestBody.MaxIterations,
		RandomSamples:      requestBody.RandomSamples,
		Seed:               requestBody.Seed,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, report)
}
