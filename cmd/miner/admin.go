package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"voxelminer.ai/internal/mining/automine"
	"voxelminer.ai/internal/mining/session"
)

type statusResponse struct {
	Running bool              `json:"running"`
	Doing   bool              `json:"doing_task"`
	Status  *session.Status   `json:"status,omitempty"`
	Last    *automine.Outcome `json:"last,omitempty"`
}

// adminMux serves the controller state to loopback callers only. cmd/admin's status and
// stop commands talk to it.
func adminMux(ctrl *automine.Controller) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/admin/v1/status", loopbackOnly(func(rw http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{Running: ctrl.Running(), Doing: ctrl.DoingTask()}
		if st, ok := ctrl.Status(); ok {
			resp.Status = &st
		}
		if last, ok := ctrl.Last(); ok {
			resp.Last = &last
		}
		writeJSON(rw, http.StatusOK, resp)
	}))
	mux.HandleFunc("/admin/v1/jobs", loopbackOnly(func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]any{"jobs": ctrl.Jobs()})
	}))
	mux.HandleFunc("/admin/v1/stop", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reason := strings.TrimSpace(r.URL.Query().Get("reason"))
		if reason == "" {
			reason = "admin"
		}
		if !ctrl.Stop(reason) {
			writeJSON(rw, http.StatusConflict, map[string]any{"ok": false, "error": "no session running"})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "reason": reason})
	}))
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}
