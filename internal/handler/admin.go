package handler

import (
	"crypto/subtle"
	"net/http"
	"runtime"
	"time"

	"wildsats-api/internal/repository"
	"wildsats-api/pkg/apierror"
	"wildsats-api/pkg/response"
)

// LoginKeyHeader carries the admin key.
const LoginKeyHeader = "X-Login-Key"

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	repo      repository.PlayerRepository
	storeType string
	cacheType string
	loginKey  string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. An empty loginKey disables the admin routes.
func NewAdminHandler(repo repository.PlayerRepository, storeType, cacheType, loginKey string) *AdminHandler {
	return &AdminHandler{
		repo:      repo,
		storeType: storeType,
		cacheType: cacheType,
		loginKey:  loginKey,
		startTime: time.Now(),
	}
}

// RequireLoginKey rejects requests without the configured X-Login-Key.
func (h *AdminHandler) RequireLoginKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(LoginKeyHeader)
		if h.loginKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.loginKey)) != 1 {
			response.Error(w, apierror.Unauthorized("invalid login key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	storeStats, err := h.repo.GetStats(r.Context())
	if err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// VerifyLogin handles POST /api/v1/admin/login. Reaching it means the key was accepted.
func (h *AdminHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]bool{"valid": true})
}
