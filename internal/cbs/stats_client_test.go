package cbs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsClient_Stats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "85618NED/TypedDataSet")
		assert.Equal(t, "WijkenEnBuurten eq 'BU0503'", r.URL.Query().Get("$filter"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"value": [
				{"WijkenEnBuurten": "BU0503", "Bevolkingsdichtheid_34": 5200, "GemiddeldeWOZWaardeVanWoningen_36": 412}
			]
		}`))
	}))
	defer srv.Close()

	client := NewStatsClient(testConfig(srv.URL), testLogger())
	stats, err := client.Stats(context.Background(), "BU0503")
	require.NoError(t, err)
	require.NotNil(t, stats)
	require.NotNil(t, stats.PopulationDensity)
	assert.Equal(t, 5200, *stats.PopulationDensity)
	require.NotNil(t, stats.AverageWozValueKeur)
	assert.InDelta(t, 412.0, *stats.AverageWozValueKeur, 0.001)
}

func TestStatsClient_MissingRegionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()

	client := NewStatsClient(testConfig(srv.URL), testLogger())
	stats, err := client.Stats(context.Background(), "BU9999")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestStatsClient_UpstreamErrorIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewStatsClient(testConfig(srv.URL), testLogger())
	stats, err := client.Stats(context.Background(), "BU0503")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestStatsClient_EmptyRegionCode(t *testing.T) {
	client := NewStatsClient(testConfig("http://localhost:0"), testLogger())
	stats, err := client.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestCrimeClient_FoldsCategoriesIntoRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "47022NED/TypedDataSet")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"value": [
				{
					"WijkenEnBuurten": "BU0503",
					"AantalInwoners_5": 2000,
					"TotaalDiefstalUitWoningSchuurED_106": 30,
					"VernielingMisdrijfTegenOpenbareOrde_107": 20,
					"GeweldsEnSeksueleMisdrijven_108": 10
				}
			]
		}`))
	}))
	defer srv.Close()

	client := NewCrimeClient(testConfig(srv.URL), testLogger())
	stats, err := client.CrimeStats(context.Background(), "BU0503")
	require.NoError(t, err)
	require.NotNil(t, stats)
	require.NotNil(t, stats.TotalCrimesPer1000)
	// (30 + 20 + 10) / 2000 * 1000
	assert.InDelta(t, 30.0, *stats.TotalCrimesPer1000, 0.001)
}

func TestCrimeClient_NoCategoriesReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"value": [
				{"WijkenEnBuurten": "BU0503", "AantalInwoners_5": 2000}
			]
		}`))
	}))
	defer srv.Close()

	client := NewCrimeClient(testConfig(srv.URL), testLogger())
	stats, err := client.CrimeStats(context.Background(), "BU0503")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Nil(t, stats.TotalCrimesPer1000)
}

func TestCrimeClient_MissingRegionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()

	client := NewCrimeClient(testConfig(srv.URL), testLogger())
	stats, err := client.CrimeStats(context.Background(), "BU9999")
	require.NoError(t, err)
	assert.Nil(t, stats)
}
