package api

import (
	"context"
	"errors"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/service/metrics"
	"WattWise/internal/services/forecast"
	"WattWise/internal/services/summary"
	"WattWise/internal/usecase"
	xhttp "WattWise/pkg/http"
	applogger "WattWise/pkg/logger"
	"WattWise/pkg/queue"
	xutil "WattWise/pkg/util"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ForecastHandler serves the prediction and dashboard endpoints.
type ForecastHandler struct {
	forecasts *usecase.ForecastUseCase
	analysis  *usecase.AnalysisUseCase
	hub       *Hub
	jobs      queue.Enqueuer
	limit     []echo.MiddlewareFunc
	l         *applogger.Logger
}

func NewForecastHandler(forecasts *usecase.ForecastUseCase, analysis *usecase.AnalysisUseCase, hub *Hub) *ForecastHandler {
	metrics.Register()
	return &ForecastHandler{forecasts: forecasts, analysis: analysis, hub: hub, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (h *ForecastHandler) SetLogger(l *applogger.Logger) { h.l = l }

// SetJobQueue enables POST /api/predict/async.
func (h *ForecastHandler) SetJobQueue(q queue.Enqueuer) { h.jobs = q }

// SetPredictMiddleware installs middleware, typically a rate limiter, on the predict routes only.
func (h *ForecastHandler) SetPredictMiddleware(mw ...echo.MiddlewareFunc) { h.limit = mw }

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict, h.limit...)
	g.POST("/predict/batch", h.PredictBatch, h.limit...)
	if h.jobs != nil {
		g.POST("/predict/async", h.PredictAsync, h.limit...)
	}

	g.GET("/model-specs/:city", h.ModelSpec)
	g.GET("/prediction-result/:city", h.PredictionResult)
	g.GET("/consumption-summary/:city", h.ConsumptionSummary)
	g.GET("/tolerance-test/:city", h.ToleranceTest)
	g.GET("/weekday-demand/:city", h.WeekdayDemand)
	g.GET("/holiday-demand/:city", h.HolidayDemand)
	g.GET("/seasonal-trends/:city", h.SeasonalTrends)
	g.GET("/actual-vs-predicted/:city", h.ActualVsPredicted)

	if h.hub != nil {
		g.GET("/ws/forecasts", h.hub.Serve)
	}
}

// PredictResponse is returned by POST /api/predict.
type PredictResponse struct {
	RunID   string                 `json:"runId"`
	Summary models.Summary         `json:"summary"`
	Points  []models.ForecastPoint `json:"points"`
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	defer observe("predict", time.Now())
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xhttp.ParseDayRange(req.StartDate, req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	run, err := h.forecasts.Predict(c.Request().Context(), usecase.PredictParams{
		City:  xutil.NormalizeCity(req.CityName),
		From:  from,
		To:    to,
		Model: models.ModelType(req.ModelType),
	})
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, PredictResponse{RunID: run.Result.RunID, Summary: run.Summary, Points: run.Window})
}

// PredictAsync validates the request and queues it as a forecast job.
func (h *ForecastHandler) PredictAsync(c echo.Context) error {
	defer observe("predict_async", time.Now())
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, _, err := xhttp.ParseDayRange(req.StartDate, req.EndDate); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	jobID := uuid.NewString()
	_, err := h.jobs.Enqueue(c.Request().Context(), usecase.JobType, models.ForecastJob{
		ID:        jobID,
		City:      xutil.NormalizeCity(req.CityName),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		ModelType: req.ModelType,
	})
	if err != nil {
		return h.fail(c, "predict_async", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{"jobId": jobID})
}

func (h *ForecastHandler) PredictBatch(c echo.Context) error {
	defer observe("predict_batch", time.Now())
	req := &models.BatchPredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xhttp.ParseDayRange(req.StartDate, req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	cities := make([]string, len(req.Cities))
	for i, city := range req.Cities {
		cities[i] = xutil.NormalizeCity(city)
	}

	items, err := h.forecasts.PredictBatch(c.Request().Context(), cities, from, to, models.ModelType(req.ModelType))
	if err != nil {
		return h.fail(c, "predict_batch", err)
	}
	return xhttp.SuccessResponse(c, items)
}

func (h *ForecastHandler) ModelSpec(c echo.Context) error {
	return cityQuery(h, c, "model_spec", h.analysis.ModelSpec)
}

func (h *ForecastHandler) PredictionResult(c echo.Context) error {
	return cityQuery(h, c, "prediction_result", h.analysis.LatestResult)
}

func (h *ForecastHandler) ConsumptionSummary(c echo.Context) error {
	return cityQuery(h, c, "consumption_summary", h.analysis.Consumption)
}

func (h *ForecastHandler) WeekdayDemand(c echo.Context) error {
	return cityQuery(h, c, "weekday_demand", h.analysis.WeekdayDemand)
}

func (h *ForecastHandler) HolidayDemand(c echo.Context) error {
	return cityQuery(h, c, "holiday_demand", h.analysis.HolidayDemand)
}

func (h *ForecastHandler) SeasonalTrends(c echo.Context) error {
	return cityQuery(h, c, "seasonal_trends", h.analysis.SeasonalTrends)
}

func (h *ForecastHandler) ToleranceTest(c echo.Context) error {
	defer observe("tolerance_test", time.Now())
	req := &models.ToleranceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// -1 selects the configured maximum.
	max := xhttp.ParseIntDefault(req.Max, -1)
	if max > 100 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("max must be less than or equal to 100").WithParam("max", 100))
	}
	res, err := h.analysis.Tolerance(c.Request().Context(), xutil.NormalizeCity(req.City), max)
	if err != nil {
		return h.fail(c, "tolerance_test", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) ActualVsPredicted(c echo.Context) error {
	defer observe("actual_vs_predicted", time.Now())
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analysis.ActualVsPredicted(c.Request().Context(), xutil.NormalizeCity(req.City), req.Limit)
	if err != nil {
		return h.fail(c, "actual_vs_predicted", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func cityQuery[T any](h *ForecastHandler, c echo.Context, endpoint string, fn func(ctx context.Context, city string) (T, error)) error {
	defer observe(endpoint, time.Now())
	req := &models.CityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := fn(c.Request().Context(), xutil.NormalizeCity(req.City))
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	kind := forecast.KindOf(err)
	metrics.APIErrors.WithLabelValues(endpoint, kind).Inc()
	if appErr.Status >= 500 {
		h.l.Error("api request failed",
			applogger.String("endpoint", endpoint),
			applogger.String("kind", kind),
			applogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain failures to HTTP semantics.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, drepo.ErrNotFound):
		return xhttp.NotFoundError("no data for this city").WithError(err)
	case errors.Is(err, forecast.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, forecast.ErrInsufficientHistory),
		errors.Is(err, usecase.ErrEmptyHorizon),
		errors.Is(err, summary.ErrEmptyWindow):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, forecast.ErrEstimatorFailure):
		return xhttp.BadGatewayError("model server failed").WithError(err)
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
