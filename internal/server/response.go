package server

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](c *gin.Context, status int, data T) {
	c.JSON(status, APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeCSV(c *gin.Context, points []rate.RatePoint) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=nbp_rates.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(rate.Columns)
	for _, p := range points {
		_ = w.Write([]string{
			p.Currency,
			p.Code,
			strconv.FormatFloat(p.Mid, 'f', -1, 64),
			p.TableName,
			p.EffectiveDate,
			p.TransformTimestamp,
		})
	}
	w.Flush()
}
