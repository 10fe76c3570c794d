// Package handlers provides HTTP and Lambda handlers for the repayment negotiation engine.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "repayment-negotiation-engine/internal/config"
	"repayment-negotiation-engine/internal/services/database"
	s3service "repayment-negotiation-engine/internal/services/s3"
	"repayment-negotiation-engine/internal/utils"
)

// BorrowerImportHandler handles S3 events for borrower CSV imports.
type BorrowerImportHandler struct {
	storage      *s3service.Service
	db           *database.DB
	borrowerRepo *database.BorrowerRepository
}

// NewBorrowerImportHandler creates a new borrower import handler.
func NewBorrowerImportHandler() (*BorrowerImportHandler, error) {
	storage, err := s3service.NewService(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 service: %w", err)
	}

	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &BorrowerImportHandler{
		storage:      storage,
		db:           db,
		borrowerRepo: database.NewBorrowerRepository(db),
	}, nil
}

// ImportResult is the result of processing a borrower CSV file.
type ImportResult struct {
	Message  string   `json:"message"`
	BatchID  string   `json:"batch_id"`
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Handle processes S3 events for uploaded borrower CSV files.
func (h *BorrowerImportHandler) Handle(ctx context.Context, s3Event events.S3Event) (ImportResult, error) {
	logger := utils.GetLogger()

	if len(s3Event.Records) == 0 {
		return ImportResult{Message: "No records to process"}, nil
	}

	record := s3Event.Records[0]
	bucket := record.S3.Bucket.Name
	key, err := url.QueryUnescape(record.S3.Object.Key)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to decode S3 key: %w", err)
	}

	logger.Info("Processing borrower CSV",
		utils.String("bucket", bucket),
		utils.String("key", key))

	data, err := h.storage.DownloadFile(ctx, key)
	if err != nil {
		logger.Error("Failed to download CSV", utils.Error(err))
		return ImportResult{}, fmt.Errorf("failed to download CSV: %w", err)
	}
	csvContent := string(data)

	batchID := generateBatchID(key)

	parser := utils.NewCSVParser()
	borrowers, parseErrors := parser.ParseBorrowers(csvContent, batchID)

	if len(borrowers) == 0 {
		errMsgs := make([]string, len(parseErrors))
		for i, e := range parseErrors {
			errMsgs[i] = e.Error()
		}
		return ImportResult{
			Message: "No valid borrowers found in CSV",
			BatchID: batchID,
			Errors:  errMsgs,
		}, nil
	}

	logger.Info("Parsed borrower CSV",
		utils.String("batchID", batchID),
		utils.Int("validBorrowers", len(borrowers)),
		utils.Int("parseErrors", len(parseErrors)))

	result, err := h.borrowerRepo.BulkInsert(ctx, borrowers)
	if err != nil {
		logger.Error("Failed to insert borrowers", utils.Error(err))
		return ImportResult{}, fmt.Errorf("failed to insert borrowers: %w", err)
	}

	logger.Info("Inserted borrowers",
		utils.String("batchID", batchID),
		utils.Int("inserted", result.InsertedCount),
		utils.Int("failed", result.FailedCount))

	if err := h.storage.ArchiveFile(ctx, key); err != nil {
		logger.Warn("Failed to archive file", utils.Error(err))
	}

	allErrors := make([]string, 0)
	for _, e := range parseErrors {
		allErrors = append(allErrors, e.Error())
	}
	allErrors = append(allErrors, result.Errors...)

	if len(allErrors) > 10 {
		allErrors = allErrors[:10]
	}

	return ImportResult{
		Message:  "CSV processed successfully",
		BatchID:  batchID,
		Inserted: result.InsertedCount,
		Failed:   result.FailedCount + len(parseErrors),
		Errors:   allErrors,
	}, nil
}

// generateBatchID generates a unique batch ID for this upload.
func generateBatchID(key string) string {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	hash := sha256.Sum256([]byte(key + timestamp))
	return hex.EncodeToString(hash[:])[:16]
}

// Close cleans up resources.
func (h *BorrowerImportHandler) Close() {
	if h.db != nil {
		h.db.Close()
	}
}
