package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/automine"
	"voxelminer.ai/internal/mining/miningtest"
)

func serveAdmin(mux http.Handler, method, target, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminEndpoints(t *testing.T) {
	w := miningtest.Flat(t)
	ctrl := automine.New(automine.Options{Agent: w.Agent(), Config: config.DefaultMining(), Logger: zerolog.Nop()})
	mux := adminMux(ctrl)

	rec := serveAdmin(mux, http.MethodGet, "/admin/v1/status", "203.0.113.9:5000")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serveAdmin(mux, http.MethodGet, "/healthz", "203.0.113.9:5000")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveAdmin(mux, http.MethodGet, "/admin/v1/status", "127.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.False(t, st.Running)
	require.Nil(t, st.Last)

	rec = serveAdmin(mux, http.MethodGet, "/admin/v1/stop", "[::1]:5000")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = serveAdmin(mux, http.MethodPost, "/admin/v1/stop?reason=maintenance", "[::1]:5000")
	require.Equal(t, http.StatusConflict, rec.Code)

	_, err := ctrl.Run(t.Context(), config.Overrides{})
	require.ErrorIs(t, err, automine.ErrNoPickaxe)
	rec = serveAdmin(mux, http.MethodGet, "/admin/v1/status", "127.0.0.1:5000")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotNil(t, st.Last)
	require.Equal(t, automine.ReasonNoPickaxe, st.Last.Reason)
	require.NotNil(t, st.Status)
	require.True(t, st.Status.Terminated)

	rec = serveAdmin(mux, http.MethodGet, "/admin/v1/jobs", "127.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Empty(t, jobs.Jobs)
}
