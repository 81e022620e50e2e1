package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/services/pricechart"
	"github.com/bobmcallan/sift/internal/signals"
)

// maxTopK caps top_k on screen requests
const maxTopK = 50

// --- Symbols and market data ---

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "q is required")
		return
	}

	symbol, ok := s.resolve(w, query)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"query":  query,
		"symbol": symbol,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbol, ok := s.resolvePath(w, r, "/api/series/")
	if !ok {
		return
	}

	series, err := s.app.Chain.FetchSeries(r.Context(), symbol, models.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Series request failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, series)
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbol, ok := s.resolvePath(w, r, "/api/fundamentals/")
	if !ok {
		return
	}

	info, err := s.app.Chain.FetchFundamentals(r.Context(), symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals request failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbol, ok := s.resolvePath(w, r, "/api/indicators/")
	if !ok {
		return
	}
	period := models.ParsePeriod(r.URL.Query().Get("period"))

	series, err := s.app.Chain.FetchSeries(r.Context(), symbol, period)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Indicator request failed")
		WriteServiceError(w, err)
		return
	}

	ind := signals.Compute(series)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"period":     period,
		"indicators": ind,
		"condition":  signals.Classify(ind),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbol, ok := s.resolvePath(w, r, "/api/chart/")
	if !ok {
		return
	}

	series, err := s.app.Chain.FetchSeries(r.Context(), symbol, models.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Chart request failed")
		WriteServiceError(w, err)
		return
	}

	png, err := pricechart.RenderPriceChart(series)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Chart render failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, err.Error(), CodeInternal)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// --- Screening and analysis ---

type screenRequest struct {
	Universe   []string `json:"universe"`
	Workers    int      `json:"workers"`
	TopK       int      `json:"top_k"`
	Period     string   `json:"period"`
	Timeout    string   `json:"timeout"`
	Commentary bool     `json:"commentary"`
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req screenRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	universe := req.Universe
	if len(universe) == 0 {
		universe = s.app.Screener.Universe()
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	opts := interfaces.ScreenOptions{
		Workers:    req.Workers,
		TopK:       req.TopK,
		Timeout:    ParseTimeout(req.Timeout),
		Commentary: req.Commentary,
	}
	if req.Period != "" {
		opts.Period = models.ParsePeriod(req.Period)
	}

	result, err := s.app.Screener.Screen(r.Context(), universe, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Screen request failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleScreenLast(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	last := s.app.Screener.Last()
	if last == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "No screen has completed yet", CodeNoData)
		return
	}
	WriteJSON(w, http.StatusOK, last)
}

// handleScreenStream upgrades to a WebSocket that receives screen progress
// events from every pass, including scheduled ones
func (s *Server) handleScreenStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	s.app.Events.ServeWS(w, r)
}

type analyzeRequest struct {
	Queries    []string `json:"queries"`
	Commentary bool     `json:"commentary"`
}

// batchErrorResponse reports a batch where no query produced a report
type batchErrorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Failures map[string]string `json:"failures,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analyzeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		WriteError(w, http.StatusBadRequest, "queries is required")
		return
	}

	batch, err := s.app.Analysis.AnalyzeBatch(r.Context(), req.Queries, req.Commentary)
	if err != nil {
		s.logger.Warn().Err(err).Strs("queries", req.Queries).Msg("Analysis request failed")
		status, code := ServiceErrorStatus(err)
		resp := batchErrorResponse{Error: err.Error(), Code: code}
		if batch != nil {
			resp.Failures = batch.Failures
		}
		WriteJSON(w, status, resp)
		return
	}
	WriteJSON(w, http.StatusOK, batch)
}

func (s *Server) handleAnalyzeOne(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query, err := url.PathUnescape(PathParam(r, "/api/analyze/", ""))
	if err != nil || strings.TrimSpace(query) == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	report, err := s.app.Analysis.Analyze(r.Context(), query, QueryBool(r, "commentary", false))
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Analysis request failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// --- Market overview ---

func (s *Server) handleMarketIndices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	indices, err := s.app.Overview.Indices(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"indices": indices,
		"count":   len(indices),
	})
}

func (s *Server) handleMarketSectors(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sectors, err := s.app.Overview.Sectors(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sectors": sectors,
		"count":   len(sectors),
	})
}

// --- helpers ---

// resolve maps a query to a ticker, writing a 400 when it has none
func (s *Server) resolve(w http.ResponseWriter, query string) (string, bool) {
	symbol := s.app.Resolver.Resolve(query)
	if !common.IsCanonicalSymbol(symbol) {
		WriteErrorWithCode(w, http.StatusBadRequest, "No ticker found for "+query, CodeInvalidSymbol)
		return "", false
	}
	return symbol, true
}

func (s *Server) resolvePath(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	raw, err := url.PathUnescape(PathParam(r, prefix, ""))
	if err != nil || strings.TrimSpace(raw) == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return s.resolve(w, raw)
}
