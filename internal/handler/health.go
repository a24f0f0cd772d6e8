package handler

import "net/http"

// BuildInfo carries the version metadata main.go injects via ldflags.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "radsched"})
}

// Version handles GET /version.
func Version(info BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"version":    info.Version,
			"build_time": info.BuildTime,
			"git_commit": info.GitCommit,
		})
	}
}
