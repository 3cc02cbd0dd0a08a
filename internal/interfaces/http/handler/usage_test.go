package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageHandler_Record(t *testing.T) {
	t.Run("records a measurement and returns the running total", func(t *testing.T) {
		env := setupTestServer(t)
		id := env.createTenant(t, "acme", "free")

		w, resp := env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", map[string]any{
			"metric":   "api_calls",
			"quantity": 5,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(5), data["total"])
		assert.Equal(t, "count", data["unit"])

		w, resp = env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", map[string]any{
			"metric":   "api_calls",
			"quantity": 3,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		data = resp.Data.(map[string]interface{})
		assert.Equal(t, float64(8), data["total"])
	})

	t.Run("rejects non-positive quantities", func(t *testing.T) {
		env := setupTestServer(t)
		id := env.createTenant(t, "acme", "free")

		w, _ := env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", map[string]any{
			"metric":   "api_calls",
			"quantity": 0,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("deleted tenant returns 503", func(t *testing.T) {
		env := setupTestServer(t)
		id := env.createTenant(t, "acme", "free")
		w, _ := env.do(t, http.MethodDelete, "/api/v1/tenants/"+id, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w, resp := env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", map[string]any{
			"metric":   "api_calls",
			"quantity": 1,
		})
		// the row is gone entirely, so the lookup itself misses
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, resp.Success)
	})
}

func TestUsageHandler_Check(t *testing.T) {
	env := setupTestServer(t)
	id := env.createTenant(t, "acme", "free") // 1000 api_calls

	// consume most of the quota
	w, _ := env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", map[string]any{
		"metric":   "api_calls",
		"quantity": 995,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("allowed under the ceiling", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage/check?metric=api_calls&quantity=5", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, true, data["allowed"])
		assert.Equal(t, float64(995), data["current"])
	})

	t.Run("denied over the ceiling is still a 200", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage/check?metric=api_calls&quantity=6", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, false, data["allowed"])
	})

	t.Run("metric is required", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage/check", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUsageHandler_SummaryAndList(t *testing.T) {
	env := setupTestServer(t)
	id := env.createTenant(t, "acme", "free")

	for _, body := range []map[string]any{
		{"metric": "api_calls", "quantity": 400},
		{"metric": "api_calls", "quantity": 100},
		{"metric": "seats", "quantity": 2},
	} {
		w, _ := env.do(t, http.MethodPost, "/api/v1/tenants/"+id+"/usage", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("summary reports usage against limits", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage/summary", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "monthly", data["period"])

		metrics := data["metrics"].([]interface{})
		require.Len(t, metrics, 2)
		byName := map[string]map[string]interface{}{}
		for _, m := range metrics {
			row := m.(map[string]interface{})
			byName[row["metric"].(string)] = row
		}
		assert.Equal(t, float64(500), byName["api_calls"]["used"])
		assert.Equal(t, float64(1000), byName["api_calls"]["limit"])
		assert.Equal(t, float64(500), byName["api_calls"]["remaining"])
		assert.Equal(t, float64(2), byName["seats"]["used"])
	})

	t.Run("current total for one metric", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage/api_calls", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(500), data["total"])
	})

	t.Run("raw records newest first", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tenants/"+id+"/usage?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		records := resp.Data.([]interface{})
		require.Len(t, records, 2)
		first := records[0].(map[string]interface{})
		assert.Equal(t, "seats", first["metric"])
	})
}
