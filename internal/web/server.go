package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/0xVov5/farming/internal/farm"
	"github.com/0xVov5/farming/internal/logger"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/state"
	"github.com/0xVov5/farming/internal/types"
	"github.com/0xVov5/farming/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for the farm ledger
type WebServer struct {
	router  *mux.Router
	port    string
	engine  *farm.Engine
	blocks  oracle.BlockSource
	persist bool
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, engine *farm.Engine, blocks oracle.BlockSource, persist bool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		engine:  engine,
		blocks:  blocks,
		persist: persist,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools", ws.handleCreatePool).Methods("POST")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/allocation", ws.handleSetAllocation).Methods("POST")
	api.HandleFunc("/pools/{id}/positions/{addr}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/pools/{id}/pending/{addr}", ws.handleGetPending).Methods("GET")
	api.HandleFunc("/pools/{id}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/pools/{id}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/pools/{id}/harvest", ws.handleHarvest).Methods("POST")
	api.HandleFunc("/pools/{id}/withdraw-and-harvest", ws.handleWithdrawAndHarvest).Methods("POST")
	api.HandleFunc("/pools/{id}/emergency-withdraw", ws.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/pools/{id}/events", ws.handleGetPoolEvents).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/fund", ws.handleFundRewards).Methods("POST")
	api.HandleFunc("/authority", ws.handleTransferAuthority).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if ws.persist {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "farmd-reward-ledger",
			"version": "1.0.0",
		},
		"farm_status": map[string]interface{}{
			"database_healthy":   dbHealthy,
			"reward_denom":       ws.engine.RewardDenom(),
			"pool_count":         ws.engine.PoolCount(),
			"block_height":       ws.blocks.CurrentHeight(),
			"total_alloc_points": ws.engine.TotalAllocPoints(),
			"total_funding":      ws.engine.TotalFunding().String(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns every pool in the ledger
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.engine.Pools()

	response := map[string]interface{}{
		"pools":        pools,
		"count":        len(pools),
		"block_height": ws.blocks.CurrentHeight(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns a specific pool by ID
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	pool, err := ws.engine.PoolByID(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, pool)
}

// handleGetPosition returns a user's position in a pool
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}
	owner := types.Address(mux.Vars(r)["addr"])

	position, err := ws.engine.Position(poolID, owner)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, position)
}

// handleGetPending returns the rewards a user could harvest right now
func (ws *WebServer) handleGetPending(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}
	owner := types.Address(mux.Vars(r)["addr"])

	pending, err := ws.engine.PendingReward(poolID, owner)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	response := map[string]interface{}{
		"pool_id":      poolID,
		"owner":        owner,
		"pending":      pending.String(),
		"block_height": ws.blocks.CurrentHeight(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// createPoolRequest is the body for POST /api/pools
type createPoolRequest struct {
	Caller         string `json:"caller"`
	StakedAsset    string `json:"staked_asset"`
	RewardPerBlock string `json:"reward_per_block"`
	EpochEndBlock  uint64 `json:"epoch_end_block"`
	AllocPoints    uint64 `json:"alloc_points"`
}

func (ws *WebServer) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rewardPerBlock, err := utils.ParseAmount(req.RewardPerBlock)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid reward rate")
		return
	}

	pool, err := ws.engine.CreatePool(types.Address(req.Caller), req.StakedAsset, rewardPerBlock, req.EpochEndBlock, req.AllocPoints)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusCreated, pool)
}

// setAllocationRequest is the body for POST /api/pools/{id}/allocation
type setAllocationRequest struct {
	Caller      string `json:"caller"`
	AllocPoints uint64 `json:"alloc_points"`
	Overwrite   bool   `json:"overwrite"`
}

func (ws *WebServer) handleSetAllocation(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	var req setAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.SetAllocation(types.Address(req.Caller), poolID, req.AllocPoints, req.Overwrite); err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":      poolID,
		"alloc_points": req.AllocPoints,
	})
}

// settlementRequest is the shared body for settlement endpoints. Recipient
// defaults to the caller when omitted.
type settlementRequest struct {
	Caller    string `json:"caller"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (req *settlementRequest) recipient() types.Address {
	if req.Recipient == "" {
		return types.Address(req.Caller)
	}
	return types.Address(req.Recipient)
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	poolID, req, ok := ws.settlementRequestFrom(w, r)
	if !ok {
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := ws.engine.Deposit(types.Address(req.Caller), poolID, amount, req.recipient()); err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"amount":  amount.String(),
	})
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	poolID, req, ok := ws.settlementRequestFrom(w, r)
	if !ok {
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := ws.engine.Withdraw(types.Address(req.Caller), poolID, amount, req.recipient()); err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"amount":  amount.String(),
	})
}

func (ws *WebServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	poolID, req, ok := ws.settlementRequestFrom(w, r)
	if !ok {
		return
	}

	harvested, err := ws.engine.Harvest(types.Address(req.Caller), poolID, req.recipient())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":   poolID,
		"harvested": harvested.String(),
	})
}

func (ws *WebServer) handleWithdrawAndHarvest(w http.ResponseWriter, r *http.Request) {
	poolID, req, ok := ws.settlementRequestFrom(w, r)
	if !ok {
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	harvested, err := ws.engine.WithdrawAndHarvest(types.Address(req.Caller), poolID, amount, req.recipient())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":   poolID,
		"amount":    amount.String(),
		"harvested": harvested.String(),
	})
}

func (ws *WebServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	poolID, req, ok := ws.settlementRequestFrom(w, r)
	if !ok {
		return
	}

	returned, err := ws.engine.EmergencyWithdraw(types.Address(req.Caller), poolID, req.recipient())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":  poolID,
		"returned": returned.String(),
	})
}

// fundRequest is the body for POST /api/fund
type fundRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (ws *WebServer) handleFundRewards(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := ws.engine.FundRewards(types.Address(req.Caller), amount); err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"funded":        amount.String(),
		"total_funding": ws.engine.TotalFunding().String(),
	})
}

// authorityRequest is the body for POST /api/authority
type authorityRequest struct {
	Caller string `json:"caller"`
	Next   string `json:"next"`
}

func (ws *WebServer) handleTransferAuthority(w http.ResponseWriter, r *http.Request) {
	var req authorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.TransferAuthority(types.Address(req.Caller), types.Address(req.Next)); err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"authority": req.Next,
	})
}

// handleGetEvents returns recent events across all pools
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.persist {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Event history requires database mode")
		return
	}

	limit := ws.limitFromQuery(r)
	events, err := state.GetRecentEvents(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolEvents returns recent events for one pool
func (ws *WebServer) handleGetPoolEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.persist {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Event history requires database mode")
		return
	}

	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := ws.limitFromQuery(r)
	events, err := state.GetPoolEvents(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Uint64("poolId", uint64(poolID)).Msg("Failed to get pool events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"pool_id": poolID,
		"events":  events,
		"count":   len(events),
		"limit":   limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// poolIDFromRequest parses the {id} path variable, writing an error
// response on failure.
func (ws *WebServer) poolIDFromRequest(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

// settlementRequestFrom parses the pool ID and decodes the shared
// settlement body.
func (ws *WebServer) settlementRequestFrom(w http.ResponseWriter, r *http.Request) (types.PoolID, settlementRequest, bool) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return 0, settlementRequest{}, false
	}

	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return 0, settlementRequest{}, false
	}
	return poolID, req, true
}

func (ws *WebServer) limitFromQuery(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeEngineError maps ledger errors to HTTP status codes
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, farm.ErrPoolNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, farm.ErrUnauthorized):
		statusCode = http.StatusForbidden
	case errors.Is(err, farm.ErrDuplicatePool),
		errors.Is(err, farm.ErrEpochEnded),
		errors.Is(err, farm.ErrInsufficientBalance),
		errors.Is(err, farm.ErrAuthorityFixed):
		statusCode = http.StatusConflict
	case errors.Is(err, farm.ErrInvalidAmount),
		errors.Is(err, farm.ErrInvalidAsset),
		errors.Is(err, farm.ErrZeroAddress),
		errors.Is(err, farm.ErrArithmeticOverflow):
		statusCode = http.StatusBadRequest
	}

	ws.writeErrorResponse(w, statusCode, err.Error())
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
