package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/jobs"
	"github.com/banton/medical-patients-sub001/internal/models"
)

func newTestAPI(t *testing.T) (*gin.Engine, *jobs.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	governor := jobs.NewGovernor(jobs.Limits{}, 2)
	runner := jobs.NewRunner(nil, governor, 0, 0)
	manager := jobs.NewManager(jobs.NewMemoryStore(), runner, governor, nil, nil, t.TempDir(), 0, 60)

	r := gin.New()
	gen := NewGenerationHandler(manager, nil)
	jh := NewJobHandler(manager)
	r.POST("/api/v1/generation/", gen.Generate)
	r.GET("/api/v1/jobs", jh.List)
	r.GET("/api/v1/jobs/:job_id", jh.Get)
	r.GET("/api/v1/jobs/:job_id/results", jh.Results)
	r.POST("/api/v1/jobs/:job_id/cancel", jh.Cancel)
	r.DELETE("/api/v1/jobs/:job_id", jh.Delete)
	r.GET("/api/v1/download/:job_id", jh.Download)
	return r, manager
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGenerate(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		r, _ := newTestAPI(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generation/", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("neither config source", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("both config sources", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{
			ConfigurationID: "abc",
			Configuration:   &models.GenerationConfig{TotalPatients: 10},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("encryption flag without password", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{
			Configuration: &models.GenerationConfig{TotalPatients: 10},
			UseEncryption: true,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("password without encryption flag", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{
			Configuration:      &models.GenerationConfig{TotalPatients: 10},
			EncryptionPassword: "pw",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("stored configurations unavailable without a database", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{ConfigurationID: "abc"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("invalid configuration rejected", func(t *testing.T) {
		r, _ := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{
			Configuration: &models.GenerationConfig{TotalPatients: -5},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("accepted job", func(t *testing.T) {
		r, manager := newTestAPI(t)
		w := postJSON(r, "/api/v1/generation/", GenerationRequest{
			Configuration: &models.GenerationConfig{TotalPatients: 15, Days: 1, Seed: 4},
			OutputFormats: []string{"json"},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.JobID)
		assert.Equal(t, "running", resp.Status)

		waitCompleted(t, r, resp.JobID)
		require.NoError(t, manager.Shutdown(testCtx(t)))
	})
}

func TestJobEndpoints(t *testing.T) {
	r, manager := newTestAPI(t)

	w := postJSON(r, "/api/v1/generation/", GenerationRequest{
		Configuration: &models.GenerationConfig{TotalPatients: 15, Days: 1, Seed: 8},
		OutputFormats: []string{"json", "csv"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	waitCompleted(t, r, created.JobID)

	t.Run("list includes the job", func(t *testing.T) {
		w := get(r, "/api/v1/jobs")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), created.JobID)
	})

	t.Run("get unknown job", func(t *testing.T) {
		w := get(r, "/api/v1/jobs/unknown-id")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("results of completed job", func(t *testing.T) {
		w := get(r, "/api/v1/jobs/"+created.JobID+"/results")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "patients.json")
		assert.Contains(t, w.Body.String(), "patients.csv")
	})

	t.Run("download produces a zip attachment", func(t *testing.T) {
		w := get(r, "/api/v1/download/"+created.JobID)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), created.JobID)
		assert.NotZero(t, w.Body.Len())
	})

	t.Run("delete removes the job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+created.JobID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = get(r, "/api/v1/jobs/"+created.JobID)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	require.NoError(t, manager.Shutdown(testCtx(t)))
}

func TestResultsNotReady(t *testing.T) {
	r, manager := newTestAPI(t)

	w := postJSON(r, "/api/v1/generation/", GenerationRequest{
		Configuration: &models.GenerationConfig{TotalPatients: 3000, Days: 4, Seed: 6},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	res := get(r, "/api/v1/jobs/"+created.JobID+"/results")
	if res.Code != http.StatusConflict {
		// The run can finish quickly on fast machines.
		assert.Equal(t, http.StatusOK, res.Code)
	}

	postJSON(r, "/api/v1/jobs/"+created.JobID+"/cancel", nil)
	waitTerminal(t, r, created.JobID)
	require.NoError(t, manager.Shutdown(testCtx(t)))
}

func waitCompleted(t *testing.T, r *gin.Engine, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := get(r, "/api/v1/jobs/"+jobID)
		if w.Code != http.StatusOK {
			return false
		}
		var job models.Job
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == models.JobCompleted
	}, 30*time.Second, 50*time.Millisecond)
}

func waitTerminal(t *testing.T, r *gin.Engine, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := get(r, "/api/v1/jobs/"+jobID)
		if w.Code != http.StatusOK {
			return false
		}
		var job models.Job
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			return false
		}
		switch job.Status {
		case models.JobCompleted, models.JobFailed, models.JobCancelled:
			return true
		}
		return false
	}, 30*time.Second, 50*time.Millisecond)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
