package cbs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

func testConfig(url string) *Config {
	return &Config{
		WFSBaseURL:   url,
		ODataBaseURL: url,
		StatsTableID: "85618NED",
		CrimeTableID: "47022NED",
		Timeout:      5 * time.Second,
	}
}

func TestGeoClient_MunicipalitiesDeduplicatesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wijkenbuurten:gemeenten", r.URL.Query().Get("typeName"))
		assert.Equal(t, "json", r.URL.Query().Get("outputFormat"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"features": [
				{"properties": {"gemeentenaam": "Utrecht"}},
				{"properties": {"gemeentenaam": "Amsterdam"}},
				{"properties": {"gemeentenaam": "Utrecht"}},
				{"properties": {"gemeentenaam": ""}},
				{"properties": {"gemeentenaam": "Rotterdam"}}
			]
		}`))
	}))
	defer srv.Close()

	client := NewGeoClient(testConfig(srv.URL), testLogger())
	cities, err := client.Municipalities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Amsterdam", "Rotterdam", "Utrecht"}, cities)
}

func TestGeoClient_MunicipalitiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewGeoClient(testConfig(srv.URL), testLogger())
	_, err := client.Municipalities(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestGeoClient_NeighborhoodsByMunicipality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wijkenbuurten:buurten", r.URL.Query().Get("typeName"))
		filter := r.URL.Query().Get("FILTER")
		assert.Contains(t, filter, "<Literal>Delft</Literal>")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"features": [
				{"properties": {"buurtcode": "BU0503", "buurtnaam": "Binnenstad", "soortRegio": "Buurt"}},
				{"properties": {"buurtcode": "BU0504", "buurtnaam": "", "soortRegio": "Buurt"}},
				{"properties": {"buurtcode": "", "buurtnaam": "Ignored", "soortRegio": "Buurt"}}
			]
		}`))
	}))
	defer srv.Close()

	client := NewGeoClient(testConfig(srv.URL), testLogger())
	neighborhoods, err := client.NeighborhoodsByMunicipality(context.Background(), "Delft")
	require.NoError(t, err)

	require.Len(t, neighborhoods, 2, "features without a buurtcode are skipped")
	assert.Equal(t, "BU0503", neighborhoods[0].Code)
	assert.Equal(t, "Binnenstad", neighborhoods[0].Name)
	assert.Equal(t, "Buurt", neighborhoods[0].Type)
	assert.Equal(t, "Unknown", neighborhoods[1].Name, "blank names get a placeholder")
}

func TestGeoClient_NeighborhoodsEmptyMunicipality(t *testing.T) {
	client := NewGeoClient(testConfig("http://localhost:0"), testLogger())
	neighborhoods, err := client.NeighborhoodsByMunicipality(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, neighborhoods)
}
