package estimator

import (
	"context"
	"fmt"

	"WattWise/internal/domain/models"
	domsvc "WattWise/internal/domain/service"
	"WattWise/internal/services/features"
	"WattWise/pkg/otel"
)

// HTTPEstimator asks a model server for one prediction per feature vector.
type HTTPEstimator struct {
	name   string
	path   string
	schema []string
	scaler *features.MinMaxScaler
	base   *HTTPServiceBase
}

// predictReq carries missing features (the lag before L values exist) as null.
type predictReq struct {
	Model  string     `json:"model"`
	Names  []string   `json:"names"`
	Values []*float64 `json:"values"`
}

type predictResp struct {
	Prediction *float64 `json:"prediction"`
}

// NewHTTPEstimator returns an estimator served at base+path. A non-nil scaler is
// applied to the vector before it is sent.
func NewHTTPEstimator(name, path string, schema features.Schema, scaler *features.MinMaxScaler, base *HTTPServiceBase) (*HTTPEstimator, error) {
	if scaler != nil && scaler.Width() != schema.Width() {
		return nil, fmt.Errorf("estimator %s: scaler has %d columns, schema has %d", name, scaler.Width(), schema.Width())
	}
	return &HTTPEstimator{name: name, path: path, schema: schema.Names(), scaler: scaler, base: base}, nil
}

func (e *HTTPEstimator) Name() string { return e.name }

func (e *HTTPEstimator) Schema() []string { return e.schema }

func (e *HTTPEstimator) Predict(ctx context.Context, v models.FeatureVector) (float64, error) {
	ctx, span := otel.StartSpan(ctx, "estimator.predict", otel.AttrEstimator.String(e.name))
	defer span.End()

	values := v.Values
	if e.scaler != nil {
		scaled, err := e.scaler.Transform(values)
		if err != nil {
			otel.RecordError(span, err)
			return 0, err
		}
		values = scaled
	}

	var resp predictResp
	if err := e.base.PostJSONWithRetry(ctx, e.path, predictReq{Model: e.name, Names: v.Names, Values: nullable(values)}, &resp); err != nil {
		otel.RecordError(span, err)
		return 0, err
	}
	if resp.Prediction == nil {
		err := fmt.Errorf("response has no prediction")
		otel.RecordError(span, err)
		return 0, err
	}
	return *resp.Prediction, nil
}

func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !features.IsMissing(values[i]) {
			out[i] = &values[i]
		}
	}
	return out
}

var _ domsvc.PointEstimator = (*HTTPEstimator)(nil)
