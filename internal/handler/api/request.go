package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Alias1177/SignalEngine/models"
)

var validate = validator.New()

type analyzeRequest struct {
	Symbol     string `query:"symbol" validate:"required"`
	Timeframes string `query:"timeframes"`
}

type recommendationRequest struct {
	Symbol string `query:"symbol" validate:"required"`
}

type openTradeRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type closeTradeRequest struct {
	ID        string     `param:"id" validate:"required"`
	ExitPrice float64    `json:"exit_price" validate:"gt=0"`
	ClosedAt  *time.Time `json:"closed_at"`
}

type portfolioRequest struct {
	Symbol    string `query:"symbol"`
	Timeframe string `query:"timeframe"`
	Since     string `query:"since"`
	Until     string `query:"until"`
}

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// readAndValidate binds, applies defaults and validates req
func readAndValidate(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Field:   fe.Field(),
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Message: fieldMessage(fe),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}

// filter converts the query into a trade filter
func (r portfolioRequest) filter() (models.TradeFilter, []ValidationError) {
	var (
		f    = models.TradeFilter{Symbol: r.Symbol}
		errs []ValidationError
	)

	if r.Timeframe != "" {
		tf, err := models.ParseTimeframe(r.Timeframe)
		if err != nil {
			errs = append(errs, ValidationError{Field: "timeframe", Code: "ERR_TIMEFRAME", Message: err.Error()})
		}
		f.Timeframe = tf
	}

	for _, bound := range []struct {
		field string
		raw   string
		dst   *time.Time
	}{
		{"since", r.Since, &f.Since},
		{"until", r.Until, &f.Until},
	} {
		if bound.raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: bound.field, Code: "ERR_TIME", Message: "must be an RFC3339 timestamp"})
			continue
		}
		*bound.dst = ts.UTC()
	}

	return f, errs
}
