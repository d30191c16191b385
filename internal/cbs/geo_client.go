// Package cbs provides thin clients for the Dutch open-data APIs used during
// ingestion: the PDOK "wijken en buurten" WFS for geography and the CBS OData
// tables for per-neighborhood statistics.
package cbs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mverbeek/buurtlens/internal/logger"
)

// NeighborhoodGeometry is one buurt as returned by the PDOK WFS.
// Coordinates are zero until a map layer parses the raw geometry.
type NeighborhoodGeometry struct {
	Code      string
	Name      string
	Type      string
	Latitude  float64
	Longitude float64
}

// Config holds connection settings shared by the CBS clients.
type Config struct {
	WFSBaseURL   string
	ODataBaseURL string
	StatsTableID string
	CrimeTableID string
	Timeout      time.Duration
}

// GeoClient fetches municipality and neighborhood geography from the PDOK WFS.
type GeoClient struct {
	client  *resty.Client
	baseURL string
	logger  *logger.Logger
}

// NewGeoClient creates a new GeoClient.
// Parameters:
//   - cfg: CBS connection settings.
//   - log: logger instance.
// Returns:
//   - *GeoClient: initialized client.
func NewGeoClient(cfg *Config, log *logger.Logger) *GeoClient {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &GeoClient{
		client:  client,
		baseURL: cfg.WFSBaseURL,
		logger:  log,
	}
}

type wfsMunicipalityResponse struct {
	Features []struct {
		Properties struct {
			Gemeentenaam string `json:"gemeentenaam"`
		} `json:"properties"`
	} `json:"features"`
}

type wfsNeighborhoodResponse struct {
	Features []struct {
		Properties struct {
			Buurtcode  string `json:"buurtcode"`
			Buurtnaam  string `json:"buurtnaam"`
			SoortRegio string `json:"soortRegio"`
		} `json:"properties"`
	} `json:"features"`
}

// Municipalities fetches the names of all Dutch municipalities.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: distinct municipality names, sorted.
//   - error: non-nil on transport failure or a non-success status.
func (c *GeoClient) Municipalities(ctx context.Context) ([]string, error) {
	var parsed wfsMunicipalityResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"service":      "WFS",
			"version":      "2.0.0",
			"request":      "GetFeature",
			"typeName":     "wijkenbuurten:gemeenten",
			"outputFormat": "json",
			"srsName":      "EPSG:4326",
		}).
		SetResult(&parsed).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to call PDOK WFS: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("PDOK WFS error: status %d", resp.StatusCode())
	}

	seen := make(map[string]struct{}, len(parsed.Features))
	names := make([]string, 0, len(parsed.Features))
	for _, feature := range parsed.Features {
		name := feature.Properties.Gemeentenaam
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// NeighborhoodsByMunicipality fetches all buurt geometries of one municipality.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - municipality: municipality name to filter on.
// Returns:
//   - []NeighborhoodGeometry: matching neighborhoods; empty for a blank name.
//   - error: non-nil on transport failure or a non-success status.
func (c *GeoClient) NeighborhoodsByMunicipality(ctx context.Context, municipality string) ([]NeighborhoodGeometry, error) {
	if municipality == "" {
		return nil, nil
	}

	var parsed wfsNeighborhoodResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"service":      "WFS",
			"version":      "2.0.0",
			"request":      "GetFeature",
			"typeName":     "wijkenbuurten:buurten",
			"outputFormat": "json",
			"srsName":      "EPSG:4326",
			"FILTER":       municipalityFilter(municipality),
		}).
		SetResult(&parsed).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to call PDOK WFS for municipality %q: %w", municipality, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("PDOK WFS error for municipality %q: status %d", municipality, resp.StatusCode())
	}

	results := make([]NeighborhoodGeometry, 0, len(parsed.Features))
	for _, feature := range parsed.Features {
		props := feature.Properties
		if props.Buurtcode == "" {
			continue
		}
		name := props.Buurtnaam
		if name == "" {
			name = "Unknown"
		}
		results = append(results, NeighborhoodGeometry{
			Code: props.Buurtcode,
			Name: name,
			Type: props.SoortRegio,
		})
	}
	return results, nil
}

// municipalityFilter builds the OGC filter expression selecting one
// municipality. Query-parameter encoding is left to the HTTP client.
func municipalityFilter(municipality string) string {
	return fmt.Sprintf(
		"<Filter><PropertyIsEqualTo><PropertyName>gemeentenaam</PropertyName><Literal>%s</Literal></PropertyIsEqualTo></Filter>",
		municipality)
}
