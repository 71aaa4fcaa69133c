package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocanopy/app"
	"gocanopy/domain/canopy"
	"gocanopy/internal/testkit"
)

func testApp() *App {
	return NewApp(Config{Port: "0"}, app.NewFitService(nil), nil)
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testApp().router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRunFitEndpoint(t *testing.T) {
	a := testApp()

	t.Run("runs a complete fit", func(t *testing.T) {
		observations := testkit.NewGenerator(42).Generate(testkit.Scenario{
			TrueK:      map[canopy.GroupLabel]float64{"dense": 0.9, "sparse": 0.4},
			Kappa:      50,
			Predictors: []float64{0.5, 1, 2, 3},
			Replicates: 3,
		})
		payload, err := json.Marshal(map[string]interface{}{
			"observations": observations,
			"restarts":     2,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/fits", bytes.NewReader(payload))
		a.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var outcome app.FitOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.NotEmpty(t, outcome.RunID)
		assert.Len(t, outcome.Tables, 3)
		assert.Equal(t, []canopy.GroupLabel{"dense", "sparse"}, outcome.Groups)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/fits", bytes.NewReader([]byte("{not json")))
		a.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid observations", func(t *testing.T) {
		payload, err := json.Marshal(map[string]interface{}{
			"observations": []canopy.Observation{{Response: 1.0, Predictor: 1, Group: "a"}},
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/fits", bytes.NewReader(payload))
		a.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "INVALID_INPUT", body["code"])
	})
}

func TestRepositoryEndpointsWithoutStore(t *testing.T) {
	a := testApp()

	for _, path := range []string{"/api/fits", "/api/fits/some-id"} {
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}
