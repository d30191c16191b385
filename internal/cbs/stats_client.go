package cbs

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/mverbeek/buurtlens/internal/logger"
)

// NeighborhoodStats carries the demographic figures merged into a
// neighborhood record. Fields are nil when CBS has no value for the region.
type NeighborhoodStats struct {
	PopulationDensity   *int
	AverageWozValueKeur *float64
}

// StatsClient fetches per-neighborhood demographic statistics from the CBS
// "kerncijfers wijken en buurten" OData table.
type StatsClient struct {
	client  *resty.Client
	baseURL string
	tableID string
	logger  *logger.Logger
}

// NewStatsClient creates a new StatsClient.
// Parameters:
//   - cfg: CBS connection settings.
//   - log: logger instance.
// Returns:
//   - *StatsClient: initialized client.
func NewStatsClient(cfg *Config, log *logger.Logger) *StatsClient {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &StatsClient{
		client:  client,
		baseURL: cfg.ODataBaseURL,
		tableID: cfg.StatsTableID,
		logger:  log,
	}
}

type statsRow struct {
	WijkenEnBuurten                string   `json:"WijkenEnBuurten"`
	Bevolkingsdichtheid            *int     `json:"Bevolkingsdichtheid_34"`
	GemiddeldeWOZWaardeVanWoningen *float64 `json:"GemiddeldeWOZWaardeVanWoningen_36"`
}

type statsResponse struct {
	Value []statsRow `json:"value"`
}

// Stats fetches demographic figures for one region code.
//
// A missing region or a non-success upstream status yields (nil, nil): the
// upstream datasets legitimately omit small regions, and ingestion treats an
// absent row as "no data", not as a failure.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - regionCode: CBS region code (buurtcode).
// Returns:
//   - *NeighborhoodStats: figures for the region, or nil when absent.
//   - error: non-nil only on transport failure.
func (c *StatsClient) Stats(ctx context.Context, regionCode string) (*NeighborhoodStats, error) {
	if regionCode == "" {
		return nil, nil
	}

	var parsed statsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"$filter": fmt.Sprintf("WijkenEnBuurten eq '%s'", regionCode),
			"$top":    "1",
			"$select": "WijkenEnBuurten,Bevolkingsdichtheid_34,GemiddeldeWOZWaardeVanWoningen_36",
		}).
		SetResult(&parsed).
		Get(fmt.Sprintf("%s/%s/TypedDataSet", c.baseURL, c.tableID))
	if err != nil {
		return nil, fmt.Errorf("failed to call CBS stats table: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.logger.WithFields(logger.Fields{
			"region": regionCode,
			"status": resp.StatusCode(),
		}).Warn("CBS stats lookup failed")
		return nil, nil
	}
	if len(parsed.Value) == 0 {
		return nil, nil
	}

	row := parsed.Value[0]
	return &NeighborhoodStats{
		PopulationDensity:   row.Bevolkingsdichtheid,
		AverageWozValueKeur: row.GemiddeldeWOZWaardeVanWoningen,
	}, nil
}
