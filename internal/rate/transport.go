package rate

import (
	"strings"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
)

type ListRatesRequest struct {
	Code string
	From time.Time
	To   time.Time
}

func (r ListRatesRequest) Validate() *apperror.AppError {
	if r.Code != "" && len(r.Code) != 3 {
		return apperror.New(apperror.BadRequest, "code must be a 3-letter currency code")
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return apperror.New(apperror.BadRequest, "to must not be before from")
	}
	return nil
}

func (r ListRatesRequest) filter() Filter {
	return Filter{Code: strings.ToUpper(r.Code), From: r.From, To: r.To}
}

// RatePoint is the API view of a stored record.
type RatePoint struct {
	Currency           string  `json:"currency"`
	Code               string  `json:"code"`
	Mid                float64 `json:"mid"`
	TableName          string  `json:"tableName"`
	EffectiveDate      string  `json:"effectiveDate"`
	TransformTimestamp string  `json:"transformTimestamp"`
}

func toPoints(records []Record) []RatePoint {
	points := make([]RatePoint, len(records))
	for i, r := range records {
		points[i] = RatePoint{
			Currency:           r.Currency,
			Code:               r.Code,
			Mid:                r.Mid.InexactFloat64(),
			TableName:          r.TableName,
			EffectiveDate:      r.EffectiveDate.Format(DateFormat),
			TransformTimestamp: r.TransformTimestamp.Format(TimestampFormat),
		}
	}
	return points
}
