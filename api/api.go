package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wilhelmagren/finq/internal/app"
	"github.com/wilhelmagren/finq/internal/logger"
	"github.com/wilhelmagren/finq/pkg/nasdaq"
)

type ApiHandler struct {
	Pipeline app.PipelineService
	Nasdaq   *nasdaq.Client
}

func (m ApiHandler) Router() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to finq"})
	})
	router.GET("/indices/:index/constituents", m.constituents)
	router.POST("/optimize", m.optimize)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.Router().Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.Error(err)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func logRequestMiddleware(ctx *gin.Context) {
	requestID := uuid.NewString()
	ctx.Header("X-Request-Id", requestID)

	l := logger.FromContext(ctx.Request.Context()).With(
		"requestId", requestID,
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"ip", ctx.ClientIP(),
	)
	ctx.Request = ctx.Request.WithContext(logger.AddToContext(ctx.Request.Context(), l))

	start := time.Now().UTC()
	ctx.Next()

	l.Infow("request finished",
		"status", ctx.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
	)
}
