// Package main provides the HTTP server for the repayment negotiation engine.
// It exposes the conversation API used by the collections dashboard plus
// endpoints for CSV import and batch outreach.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"repayment-negotiation-engine/internal/config"
	"repayment-negotiation-engine/internal/engine/classifier"
	"repayment-negotiation-engine/internal/engine/conversation"
	"repayment-negotiation-engine/internal/engine/outreach"
	"repayment-negotiation-engine/internal/engine/risksync"
	"repayment-negotiation-engine/internal/engine/scoring"
	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/services/cache"
	"repayment-negotiation-engine/internal/services/database"
	s3service "repayment-negotiation-engine/internal/services/s3"
	"repayment-negotiation-engine/internal/services/ses"
	"repayment-negotiation-engine/internal/services/sms"
	"repayment-negotiation-engine/internal/utils"
)

// Server holds all dependencies
type Server struct {
	db         *database.DB
	borrowers  *database.BorrowerRepository
	messages   *database.MessageRepository
	recs       *database.RecommendationRepository
	executives *database.ExecutiveRepository
	engine     *conversation.Engine
	dispatcher *outreach.Dispatcher
	analyses   *cache.AnalysisCache
	storage    *s3service.Service
	config     *config.Config
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	ctx := context.Background()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	executives := database.NewExecutiveRepository(db)

	server := &Server{
		db:         db,
		borrowers:  database.NewBorrowerRepository(db),
		messages:   database.NewMessageRepository(db),
		recs:       database.NewRecommendationRepository(db),
		executives: executives,
		config:     cfg,
	}

	scorer := scoring.NewScorer(classifier.New(cfg.ClassifierURL, cfg.ClassifierTimeout))
	risk := risksync.New(executives)

	var opts []conversation.Option

	smsSvc, err := sms.NewService(ctx)
	if err != nil {
		log.Printf("Warning: SMS service unavailable: %v", err)
	} else {
		opts = append(opts, conversation.WithSMS(smsSvc))
	}

	if cfg.RedisAddr != "" {
		analyses, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.AnalysisTTL)
		if err != nil {
			log.Printf("Warning: Redis unavailable: %v", err)
		} else {
			defer analyses.Close()
			server.analyses = analyses
			opts = append(opts, conversation.WithCache(analyses))
		}
	}

	if storage, err := s3service.NewService(ctx); err != nil {
		log.Printf("Warning: S3 service unavailable: %v", err)
	} else {
		server.storage = storage
	}

	if cfg.EscalationEmail != "" {
		sesSvc, err := ses.NewService(ctx)
		if err != nil {
			log.Printf("Warning: SES service unavailable: %v", err)
		} else {
			opts = append(opts, conversation.WithEscalator(sesSvc))
		}
	}

	server.engine = conversation.NewEngine(server.borrowers, server.messages, server.recs, scorer, risk, opts...)

	if smsSvc != nil {
		server.dispatcher = outreach.NewDispatcher(server.borrowers, server.messages, smsSvc, outreach.Config{
			Interval:   cfg.OutreachInterval,
			MinOverdue: cfg.OutreachMinOverdue,
			Limit:      cfg.OutreachLimit,
		})
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/api/health", server.healthHandler)

	// Conversation API
	mux.HandleFunc("/api/chat", server.chatHandler)
	mux.HandleFunc("/api/recommendations/decision", server.decisionHandler)
	mux.HandleFunc("/api/recommendations/restore", server.restoreHandler)
	mux.HandleFunc("/api/conversations/resolve", server.resolveHandler)

	// Borrower data
	mux.HandleFunc("/api/borrowers/", server.borrowerHandler)
	mux.HandleFunc("/api/batches/", server.batchHandler)
	mux.HandleFunc("/api/executives", server.executivesHandler)
	mux.HandleFunc("/api/upload", server.uploadHandler)
	mux.HandleFunc("/api/upload/presigned", server.presignedUploadHandler)

	// Outreach
	mux.HandleFunc("/api/outreach/run", server.outreachHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	port := getEnvOrDefault("PORT", "8080")
	addr := fmt.Sprintf("0.0.0.0:%s", port)

	log.Printf("Repayment Negotiation Engine API Server")
	log.Printf("Listening on http://localhost:%s", port)

	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if err := s.db.HealthCheck(r.Context()); err == nil {
		dbStatus = "connected"
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Repayment Negotiation Engine API is running",
		Data: map[string]interface{}{
			"status":    "healthy",
			"database":  dbStatus,
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

// chatHandler processes an inbound borrower message through the full
// scoring and negotiation pipeline.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BorrowerID int64  `json:"borrower_id"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}
	if req.BorrowerID == 0 {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "borrower_id is required"})
		return
	}

	result, err := s.engine.ProcessInbound(r.Context(), req.BorrowerID, req.Message)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// decisionHandler applies a borrower's accept or reject action to a pending
// recommendation.
func (s *Server) decisionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RecommendationID int64  `json:"recommendation_id"`
		Action           string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	var accepted bool
	switch strings.ToLower(req.Action) {
	case "accept", "accepted":
		accepted = true
	case "reject", "rejected":
		accepted = false
	default:
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "action must be accept or reject"})
		return
	}

	result, err := s.engine.DecideOnRecommendation(r.Context(), req.RecommendationID, accepted)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// restoreHandler reinstates the first generated plan after an auto-revision.
func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BorrowerID int64 `json:"borrower_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	rec, err := s.engine.RestoreOriginal(r.Context(), req.BorrowerID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Original plan restored", Data: rec})
}

// resolveHandler closes a conversation whose plan reached a final decision.
func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BorrowerID int64 `json:"borrower_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	msg, err := s.engine.Resolve(r.Context(), req.BorrowerID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// A closed conversation's cached analysis is stale by definition.
	if s.analyses != nil {
		if err := s.analyses.InvalidateAnalysis(r.Context(), req.BorrowerID); err != nil {
			log.Printf("Warning: failed to invalidate cached analysis: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: msg})
}

// borrowerHandler serves borrower detail, conversation history,
// recommendations and cached analysis:
//
//	GET /api/borrowers/{id}
//	GET /api/borrowers/{id}/messages
//	GET /api/borrowers/{id}/recommendations
//	GET /api/borrowers/{id}/analysis
func (s *Server) borrowerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/borrowers/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "borrower id is required"})
		return
	}

	ctx := r.Context()

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		// Non-numeric segments are treated as loan IDs.
		if len(parts) > 1 {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid borrower id"})
			return
		}
		borrower, err := s.borrowers.GetByLoanID(ctx, parts[0])
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: borrower})
		return
	}

	if len(parts) == 1 {
		borrower, err := s.borrowers.GetByID(ctx, id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: borrower})
		return
	}

	switch parts[1] {
	case "messages":
		msgs, err := s.messages.GetByBorrowerID(ctx, id, 200)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: msgs})
	case "recommendations":
		recs, err := s.recs.GetByBorrowerID(ctx, id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: recs})
	case "analysis":
		if s.analyses == nil {
			writeJSON(w, http.StatusOK, Response{Success: true, Data: nil})
			return
		}
		analysis, err := s.analyses.GetAnalysis(ctx, id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: analysis})
	default:
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "unknown resource"})
	}
}

// batchHandler returns the borrowers ingested under one import batch.
//
//	GET /api/batches/{batch_id}
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batchID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/batches/"), "/")
	if batchID == "" {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "batch id is required"})
		return
	}

	ctx := r.Context()

	count, err := s.borrowers.CountByBatchID(ctx, batchID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	borrowers, err := s.borrowers.GetByBatchID(ctx, batchID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]interface{}{
		"batch_id":  batchID,
		"count":     count,
		"borrowers": borrowers,
	}})
}

// executivesHandler lists the on-duty field executives.
func (s *Server) executivesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	execs, err := s.executives.ListOnDuty(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: execs})
}

// uploadHandler accepts a borrower CSV directly, for local development
// without the S3 import path.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to parse form: " + err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "No file provided"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Only CSV files are allowed"})
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to read file"})
		return
	}

	batchID := fmt.Sprintf("batch_%d", time.Now().Unix())

	parser := utils.NewCSVParser()
	borrowers, parseErrors := parser.ParseBorrowers(string(content), batchID)
	if len(borrowers) == 0 {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("no valid borrowers found (%d parse errors)", len(parseErrors)),
		})
		return
	}

	result, err := s.borrowers.BulkInsert(r.Context(), borrowers)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}

	// Keep an audit copy of direct uploads next to the S3-ingested ones.
	if s.storage != nil {
		if err := s.storage.UploadFile(r.Context(), "processed/"+batchID+".csv", content, "text/csv"); err != nil {
			log.Printf("Warning: failed to archive uploaded CSV: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "CSV processed successfully",
		Data: map[string]interface{}{
			"batch_id":     batchID,
			"inserted":     result.InsertedCount,
			"failed":       result.FailedCount,
			"parse_errors": len(parseErrors),
		},
	})
}

// presignedUploadHandler issues a presigned S3 PUT URL so large borrower CSVs
// can be uploaded straight to the import bucket.
func (s *Server) presignedUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.storage == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "S3 service not configured"})
		return
	}

	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}
	if req.Filename == "" || !strings.HasSuffix(strings.ToLower(req.Filename), ".csv") {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "filename must be a .csv file"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "text/csv"
	}

	key := fmt.Sprintf("uploads/%d_%s", time.Now().Unix(), req.Filename)
	result, err := s.storage.GeneratePresignedUploadURL(r.Context(), key, req.ContentType, 15)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// outreachHandler triggers a paced outreach batch.
func (s *Server) outreachHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "SMS service not configured"})
		return
	}

	result, err := s.dispatcher.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: err.Error(), Data: result})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Outreach batch complete", Data: result})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrBorrowerNotFound),
		errors.Is(err, models.ErrRecommendationNotFound),
		errors.Is(err, models.ErrNoRevisionToRestore):
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, models.ErrRecommendationResolved),
		errors.Is(err, models.ErrPendingPlanExists):
		writeJSON(w, http.StatusConflict, Response{Success: false, Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
