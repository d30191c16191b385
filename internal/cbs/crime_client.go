package cbs

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/mverbeek/buurtlens/internal/logger"
)

// CrimeStats carries the registered-crime figures for one region.
type CrimeStats struct {
	TotalCrimesPer1000 *float64
}

// CrimeClient fetches registered-crime statistics from the CBS OData table.
type CrimeClient struct {
	client  *resty.Client
	baseURL string
	tableID string
	logger  *logger.Logger
}

// NewCrimeClient creates a new CrimeClient.
// Parameters:
//   - cfg: CBS connection settings.
//   - log: logger instance.
// Returns:
//   - *CrimeClient: initialized client.
func NewCrimeClient(cfg *Config, log *logger.Logger) *CrimeClient {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &CrimeClient{
		client:  client,
		baseURL: cfg.ODataBaseURL,
		tableID: cfg.CrimeTableID,
		logger:  log,
	}
}

type crimeRow struct {
	WijkenEnBuurten             string   `json:"WijkenEnBuurten"`
	AantalInwoners              *int     `json:"AantalInwoners_5"`
	TotaalDiefstal              *float64 `json:"TotaalDiefstalUitWoningSchuurED_106"`
	Vernieling                  *float64 `json:"VernielingMisdrijfTegenOpenbareOrde_107"`
	GeweldsEnSeksueleMisdrijven *float64 `json:"GeweldsEnSeksueleMisdrijven_108"`
}

type crimeResponse struct {
	Value []crimeRow `json:"value"`
}

// CrimeStats fetches crime figures for one region code and folds the three
// reported categories into a single per-1000-residents rate.
//
// Like StatsClient.Stats, an absent region or non-success status yields
// (nil, nil); only transport failures surface as errors.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - regionCode: CBS region code (buurtcode).
// Returns:
//   - *CrimeStats: figures for the region, or nil when absent.
//   - error: non-nil only on transport failure.
func (c *CrimeClient) CrimeStats(ctx context.Context, regionCode string) (*CrimeStats, error) {
	if regionCode == "" {
		return nil, nil
	}

	var parsed crimeResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"$filter": fmt.Sprintf("WijkenEnBuurten eq '%s'", regionCode),
			"$top":    "1",
			"$select": "WijkenEnBuurten,AantalInwoners_5,TotaalDiefstalUitWoningSchuurED_106,VernielingMisdrijfTegenOpenbareOrde_107,GeweldsEnSeksueleMisdrijven_108",
		}).
		SetResult(&parsed).
		Get(fmt.Sprintf("%s/%s/TypedDataSet", c.baseURL, c.tableID))
	if err != nil {
		return nil, fmt.Errorf("failed to call CBS crime table: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.logger.WithFields(logger.Fields{
			"region": regionCode,
			"status": resp.StatusCode(),
		}).Warn("CBS crime lookup failed")
		return nil, nil
	}
	if len(parsed.Value) == 0 {
		return nil, nil
	}

	row := parsed.Value[0]
	total := 0.0
	found := false
	for _, v := range []*float64{row.TotaalDiefstal, row.Vernieling, row.GeweldsEnSeksueleMisdrijven} {
		if v != nil {
			total += *v
			found = true
		}
	}
	if !found {
		return &CrimeStats{}, nil
	}

	if row.AantalInwoners != nil && *row.AantalInwoners > 0 {
		rate := total / float64(*row.AantalInwoners) * 1000
		return &CrimeStats{TotalCrimesPer1000: &rate}, nil
	}
	return &CrimeStats{TotalCrimesPer1000: &total}, nil
}
