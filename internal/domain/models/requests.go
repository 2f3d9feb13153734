package models

// Requests for the forecasting HTTP endpoints and job messages.

type PredictRequest struct {
	CityName  string `json:"cityName" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	ModelType string `json:"modelType" default:"hybrid" validate:"oneof=fast hybrid"`
}

type BatchPredictRequest struct {
	Cities    []string `json:"cities" validate:"required,min=1,max=32,dive,required"`
	StartDate string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	ModelType string   `json:"modelType" default:"hybrid" validate:"oneof=fast hybrid"`
}

type CityRequest struct {
	City string `param:"city" validate:"required"`
}

type ChartRequest struct {
	City  string `param:"city" validate:"required"`
	Limit int    `query:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type ToleranceRequest struct {
	City string `param:"city" validate:"required"`
	Max  string `query:"max" validate:"omitempty,number,max=3"`
}

// ForecastJob is the payload of a queued forecast request.
// ID identifies one submission; redeliveries of it share the ID.
type ForecastJob struct {
	ID        string `json:"job_id,omitempty"`
	City      string `json:"city" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ModelType string `json:"model_type" default:"hybrid" validate:"oneof=fast hybrid"`
}
