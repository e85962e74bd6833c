package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/wilhelmagren/finq/pkg/nasdaq"
)

type constituentsResponse struct {
	Index        string        `json:"index"`
	Constituents []constituent `json:"constituents"`
}

type constituent struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

func (m ApiHandler) constituents(c *gin.Context) {
	index := c.Param("index")
	if m.Nasdaq == nil {
		returnErrorJson(fmt.Errorf("no constituents client configured"), c)
		return
	}

	var filter nasdaq.SymbolFilter
	if nasdaq.IsStockholmIndex(index) {
		filter = nasdaq.StockholmSymbolFilter
	}

	names, symbols, err := m.Nasdaq.Constituents(c.Request.Context(), index, filter)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out := constituentsResponse{Index: index}
	for i := range symbols {
		out.Constituents = append(out.Constituents, constituent{
			Name:   names[i],
			Symbol: symbols[i],
		})
	}

	c.JSON(200, out)
}
