package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"crimewatch/internal/domain/report"
	"crimewatch/internal/domain/subscriber"
	"crimewatch/internal/services/alerts"
	"crimewatch/internal/services/analytics"
	"crimewatch/internal/services/prediction"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
	"crimewatch/pkg/validate"
)

// Predictor scores a prediction input
type Predictor interface {
	Predict(ctx context.Context, in prediction.Input) (*prediction.Result, error)
}

// Reporter accepts and looks up citizen reports
type Reporter interface {
	Submit(ctx context.Context, r *report.Report) error
	Get(ctx context.Context, id uuid.UUID) (*report.Report, error)
	TopCities(ctx context.Context, limit int) ([]report.CityCount, error)
}

// Subscriptions registers alert subscribers
type Subscriptions interface {
	Subscribe(ctx context.Context, req alerts.SubscribeRequest) (*subscriber.Subscriber, error)
}

// Analytics answers dashboard queries over the historical dataset
type Analytics interface {
	Options() *analytics.Options
	Summary() *analytics.Summary
	Heatmap() []analytics.HeatmapCell
	Radar() []analytics.RadarRow
	Treemap() []analytics.TreemapNode
	Trends() *analytics.Trends
	Analyze(f analytics.Filter) *analytics.Analysis
	MapIncidents(year int, crimeType string) ([]analytics.MapIncident, error)
}

// Handlers serves the public JSON API. A nil dependency turns its routes
// into 503 responses.
type Handlers struct {
	Predictor     Predictor
	Reporter      Reporter
	Subscriptions Subscriptions
	Analytics     Analytics
	log           *logger.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(p Predictor, r Reporter, s Subscriptions, a Analytics, log *logger.Logger) *Handlers {
	return &Handlers{
		Predictor:     p,
		Reporter:      r,
		Subscriptions: s,
		Analytics:     a,
		log:           log.With("component", "api"),
	}
}

// flexString accepts a JSON string or number, keeping the number's text
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type predictionRequest struct {
	City      string     `json:"city" validate:"required"`
	AgeGroup  string     `json:"age_group" validate:"required"`
	Gender    string     `json:"gender" validate:"required"`
	TimeOfDay string     `json:"time_of_day" validate:"required"`
	Month     flexString `json:"month" validate:"required"`
	DayOfWeek string     `json:"day_of_week" validate:"required"`
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	const route = "prediction"
	if h.Predictor == nil {
		writeError(w, r, h.log, route, errors.ErrModelUnavailable)
		return
	}
	var req predictionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}

	res, err := h.Predictor.Predict(r.Context(), prediction.Input{
		City:      req.City,
		AgeGroup:  req.AgeGroup,
		Gender:    req.Gender,
		TimeOfDay: req.TimeOfDay,
		Month:     string(req.Month),
		DayOfWeek: req.DayOfWeek,
	})
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) submitReport(w http.ResponseWriter, r *http.Request) {
	const route = "reporting.submit"
	if h.Reporter == nil {
		writeError(w, r, h.log, route, errors.ErrUnavailable)
		return
	}
	var rep report.Report
	if err := decode(w, r, &rep); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	if err := h.Reporter.Submit(r.Context(), &rep); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Crime report submitted successfully",
		"id":      rep.ID,
	})
}

func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	const route = "reporting.get"
	if h.Reporter == nil {
		writeError(w, r, h.log, route, errors.ErrUnavailable)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.log, route, errors.NewValidationError("id", "must be a UUID", r.PathValue("id")))
		return
	}
	rep, err := h.Reporter.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// topCities ranks cities by submitted reports, not the historical dataset
func (h *Handlers) topCities(w http.ResponseWriter, r *http.Request) {
	const route = "visualization.top_cities"
	if h.Reporter == nil {
		writeError(w, r, h.log, route, errors.ErrUnavailable)
		return
	}
	limit, err := optionalInt("limit", r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	cities, err := h.Reporter.TopCities(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (h *Handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	const route = "alerts.subscribe"
	if h.Subscriptions == nil {
		writeError(w, r, h.log, route, errors.ErrUnavailable)
		return
	}
	var req alerts.SubscribeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	sub, err := h.Subscriptions.Subscribe(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Subscribed to crime alerts",
		"subscriber": sub,
	})
}

// analyticsRoute guards the dataset-backed routes
func (h *Handlers) analyticsRoute(route string, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Analytics == nil {
			writeError(w, r, h.log, route, errors.Wrap(errors.ErrUnavailable, "crime dataset not loaded"))
			return
		}
		fn(w, r)
	}
}

func (h *Handlers) options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Analytics.Options())
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Analytics.Summary())
}

func (h *Handlers) heatmap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"heatmap": h.Analytics.Heatmap()})
}

func (h *Handlers) radar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"radar": h.Analytics.Radar()})
}

func (h *Handlers) treemap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"treemap": h.Analytics.Treemap()})
}

func (h *Handlers) trends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Analytics.Trends())
}

type analyzeRequest struct {
	City      string     `json:"city"`
	Gender    string     `json:"gender"`
	AgeGroup  string     `json:"age_group"`
	Month     flexString `json:"month"`
	Year      flexString `json:"year"`
	TimeOfDay string     `json:"time_of_day"`
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	const route = "analyze"
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	month, err := optionalInt("month", string(req.Month))
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	year, err := optionalInt("year", string(req.Year))
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Analytics.Analyze(analytics.Filter{
		City:      req.City,
		Gender:    req.Gender,
		AgeGroup:  req.AgeGroup,
		Month:     month,
		Year:      year,
		TimeOfDay: req.TimeOfDay,
	}))
}

func (h *Handlers) mapIncidents(w http.ResponseWriter, r *http.Request) {
	const route = "map_data"
	q := r.URL.Query()
	if q.Get("year") == "" {
		writeError(w, r, h.log, route, errors.NewValidationError("year", "is required", ""))
		return
	}
	year, err := optionalInt("year", q.Get("year"))
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	incidents, err := h.Analytics.MapIncidents(year, q.Get("crime_type"))
	if err != nil {
		writeError(w, r, h.log, route, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

// optionalInt parses an integer filter; blank means unset (0)
func optionalInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(field, "must be an integer", raw)
	}
	return n, nil
}
