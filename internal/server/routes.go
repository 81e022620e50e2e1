package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/bobmcallan/sift/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Symbols and market data
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/series/", s.handleSeries)
	mux.HandleFunc("/api/fundamentals/", s.handleFundamentals)
	mux.HandleFunc("/api/indicators/", s.handleIndicators)
	mux.HandleFunc("/api/chart/", s.handleChart)

	// Screening and analysis
	mux.HandleFunc("/api/screen/last", s.handleScreenLast)
	mux.HandleFunc("/api/screen/stream", s.handleScreenStream)
	mux.HandleFunc("/api/screen", s.handleScreen)
	mux.HandleFunc("/api/analyze/", s.handleAnalyzeOne)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)

	// Market overview
	mux.HandleFunc("/api/market/indices", s.handleMarketIndices)
	mux.HandleFunc("/api/market/sectors", s.handleMarketSectors)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.app.StartupTime).Round(time.Second).String(),
		"providers": s.app.Chain.Providers(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":     common.GetVersion(),
		"environment": cfg.Environment,
		"uptime":      time.Since(s.app.StartupTime).Round(time.Second).String(),
		"cache": map[string]string{
			"backend": cfg.Storage.Cache.Backend,
			"ttl":     s.app.Cache.TTL().String(),
		},
		"providers":  s.app.Chain.Stats(),
		"commentary": s.app.Analysis.CommentaryEnabled(),
		"universe":   s.app.Screener.Universe(),
		"scheduler":  cfg.Scheduler.Enabled,
		"listeners":  s.app.Events.ClientCount(),
		"runtime": map[string]interface{}{
			"goroutines":    runtime.NumGoroutine(),
			"heap_alloc_mb": float64(mem.HeapAlloc) / (1 << 20),
			"num_gc":        mem.NumGC,
			"go_version":    runtime.Version(),
		},
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
