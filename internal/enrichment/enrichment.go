// Package enrichment asks an external conditions service about the weather
// and traffic at an accident location. Its output is advisory only.
package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"claimsflow/internal/common/config"
	apperrors "claimsflow/internal/common/errors"
	commonhttp "claimsflow/internal/common/http"
	"claimsflow/internal/common/logger"
)

type conditionsResponse struct {
	Weather   string `json:"weather"`
	Traffic   string `json:"traffic"`
	Summary   string `json:"summary"`
	Confirmed bool   `json:"confirmed"`
}

type Client struct {
	http    *commonhttp.Client
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func NewClient(cfg config.EnrichmentConfig, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		http:    commonhttp.NewClient(timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  log.WithFields(map[string]interface{}{"component": "enrichment"}),
	}
}

// Enrich returns a one-line advisory about conditions at location around at.
func (c *Client) Enrich(ctx context.Context, location string, at time.Time) (string, error) {
	q := url.Values{}
	q.Set("location", location)
	q.Set("at", at.UTC().Format(time.RFC3339))

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["X-API-Key"] = c.apiKey
	}

	var resp conditionsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v1/conditions?"+q.Encode(), headers, &resp); err != nil {
		return "", apperrors.NewDependencyUnavailableError("enrichment", err)
	}

	c.logger.Debug("location enriched", map[string]interface{}{"location": location})
	return Advisory(location, resp.Summary, resp.Weather, resp.Traffic), nil
}

// Advisory formats the location message shown in the intake transcript.
func Advisory(location, summary, weather, traffic string) string {
	if summary != "" {
		return fmt.Sprintf("Location identified: %s. %s", location, summary)
	}
	var parts []string
	if weather != "" {
		parts = append(parts, "Weather conditions at time of incident: "+weather+".")
	}
	if traffic != "" {
		parts = append(parts, traffic)
	}
	if len(parts) == 0 {
		return "Location identified: " + location + "."
	}
	return fmt.Sprintf("Location identified: %s. %s", location, strings.Join(parts, " "))
}
