// Package nwps talks to the National Water Prediction Service API and the
// return-period analysis service. It is the sole adapter boundary for raw
// hydrological payloads; everything it returns is already normalized.
package nwps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

// ErrNotFound reports that the upstream confirmed a reach does not exist.
var ErrNotFound = errors.New("reach not found")

// UpstreamError is a non-2xx response from a dependency.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Body)
}

// horizonSeries maps each forecast horizon to its upstream product name.
var horizonSeries = []struct {
	horizon domain.Horizon
	product string
}{
	{domain.HorizonShort, "short_range"},
	{domain.HorizonMedium, "medium_range"},
	{domain.HorizonLong, "long_range"},
}

// Client fetches reach metadata, flow forecasts, and return-period
// thresholds.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	analysisURL string
	analysisKey string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewClient creates an upstream client. baseURL is the NWPS API root,
// analysisURL the return-period service endpoint.
func NewClient(baseURL, analysisURL, analysisKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		analysisURL: analysisURL,
		analysisKey: analysisKey,
		logger:      logger,
		metrics:     metrics,
	}
}

// Reach fetches metadata for a reach. Returns ErrNotFound when the upstream
// confirms absence.
func (c *Client) Reach(ctx context.Context, reachID domain.ReachID) (domain.RiverReach, error) {
	var decoded struct {
		ReachID     string  `json:"reachId"`
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		StreamOrder int     `json:"streamOrder"`
		State       string  `json:"state"`
	}
	u := fmt.Sprintf("%s/reaches/%s", c.baseURL, url.PathEscape(string(reachID)))
	if err := c.getJSON(ctx, u, &decoded); err != nil {
		return domain.RiverReach{}, err
	}

	reach := domain.RiverReach{
		ReachID:     reachID,
		Name:        decoded.Name,
		Latitude:    decoded.Latitude,
		Longitude:   decoded.Longitude,
		StreamOrder: decoded.StreamOrder,
		State:       decoded.State,
	}
	if decoded.ReachID != "" {
		reach.ReachID = domain.NewReachID(decoded.ReachID)
	}
	return reach, nil
}

// Forecast fetches every horizon for a reach and assembles the normalized
// forecast. A failing horizon is logged and omitted; the call errors only
// when no horizon could be fetched at all.
func (c *Client) Forecast(ctx context.Context, reachID domain.ReachID) (domain.NormalizedFlowForecast, error) {
	var inputs []domain.SeriesInput
	var lastErr error

	for _, hs := range horizonSeries {
		payload, err := c.streamflow(ctx, reachID, hs.product)
		if err != nil {
			c.metrics.ForecastFetches.WithLabelValues(string(hs.horizon), "error").Inc()
			c.logger.Warn("horizon fetch failed, omitting",
				"reach_id", reachID,
				"horizon", hs.horizon,
				"error", err,
			)
			lastErr = err
			continue
		}
		c.metrics.ForecastFetches.WithLabelValues(string(hs.horizon), "success").Inc()
		inputs = append(inputs, seriesInputs(hs.horizon, payload)...)
	}

	if len(inputs) == 0 && lastErr != nil {
		return domain.NormalizedFlowForecast{}, fmt.Errorf("fetch forecast %s: %w", reachID, lastErr)
	}
	return domain.BuildNormalizedForecast(string(reachID), inputs), nil
}

// streamflow fetches one horizon's raw payload, decoded loosely.
func (c *Client) streamflow(ctx context.Context, reachID domain.ReachID, product string) (map[string]any, error) {
	u := fmt.Sprintf("%s/reaches/%s/streamflow?series=%s",
		c.baseURL, url.PathEscape(string(reachID)), url.QueryEscape(product))
	var payload map[string]any
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// seriesInputs splits a raw horizon payload into per-trace inputs. The
// upstream shape is {units, mean?, members?} or a bare {units, points}.
func seriesInputs(horizon domain.Horizon, payload map[string]any) []domain.SeriesInput {
	units, _ := payload["units"].(string)

	var inputs []domain.SeriesInput
	if mean, ok := payload["mean"]; ok {
		inputs = append(inputs, domain.SeriesInput{Horizon: horizon, Label: "mean", Payload: mean, Units: units})
	}
	if members, ok := payload["members"].([]any); ok {
		for i, member := range members {
			label := fmt.Sprintf("member%d", i+1)
			if m, ok := member.(map[string]any); ok {
				if l, ok := m["label"].(string); ok && l != "" {
					label = l
				}
			}
			inputs = append(inputs, domain.SeriesInput{Horizon: horizon, Label: label, Payload: member, Units: units})
		}
	}
	if len(inputs) == 0 {
		// Deterministic single-trace payload: the object itself carries the
		// points array.
		inputs = append(inputs, domain.SeriesInput{Horizon: horizon, Label: "mean", Payload: payload, Units: units})
	}
	return inputs
}

// ReturnPeriods fetches and normalizes threshold rows for the given reaches
// via the comids parameter.
func (c *Client) ReturnPeriods(ctx context.Context, reachIDs []domain.ReachID) ([]domain.ReachReturnPeriods, error) {
	if len(reachIDs) == 0 {
		return nil, nil
	}
	comids := make([]string, len(reachIDs))
	for i, id := range reachIDs {
		comids[i] = string(id)
	}

	params := url.Values{
		"comids": {strings.Join(comids, ",")},
		"key":    {c.analysisKey},
	}
	var rows []domain.RawReturnPeriodRow
	if err := c.getJSON(ctx, c.analysisURL+"?"+params.Encode(), &rows); err != nil {
		return nil, err
	}
	return domain.NormalizeReturnPeriodRows(rows), nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
