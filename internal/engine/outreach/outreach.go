// Package outreach dispatches paced batch SMS campaigns to overdue borrowers.
package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/engine/conversation"
	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// DefaultInterval is the pause between consecutive sends.
const DefaultInterval = 2500 * time.Millisecond

// BorrowerLister selects borrowers eligible for outreach.
type BorrowerLister interface {
	// ListOverdue returns borrowers at least minOverdue days past due that do
	// not have an accepted plan, up to limit.
	ListOverdue(ctx context.Context, minOverdue, limit int) ([]*models.Borrower, error)
}

// MessageRecorder persists outreach messages after delivery and answers
// whether a borrower was contacted before.
type MessageRecorder interface {
	Create(ctx context.Context, msg *models.MessageCreate) (*models.Message, error)
	LatestAutomated(ctx context.Context, borrowerID int64) (*models.Message, error)
}

// Dispatcher sends initial-contact messages to batches of overdue borrowers
// with a fixed interval between sends.
type Dispatcher struct {
	borrowers  BorrowerLister
	messages   MessageRecorder
	sms        conversation.SMSSender
	interval   time.Duration
	minOverdue int
	limit      int
}

// Config holds dispatcher tuning parameters.
type Config struct {
	Interval   time.Duration
	MinOverdue int
	Limit      int
}

// NewDispatcher creates an outreach dispatcher. Zero config fields fall back
// to defaults.
func NewDispatcher(borrowers BorrowerLister, messages MessageRecorder, sms conversation.SMSSender, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinOverdue <= 0 {
		cfg.MinOverdue = 7
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	return &Dispatcher{
		borrowers:  borrowers,
		messages:   messages,
		sms:        sms,
		interval:   cfg.Interval,
		minOverdue: cfg.MinOverdue,
		limit:      cfg.Limit,
	}
}

// SendResult records the outcome for one borrower in a batch.
type SendResult struct {
	BorrowerID int64  `json:"borrower_id"`
	LoanID     string `json:"loan_id"`
	Sent       bool   `json:"sent"`
	Error      string `json:"error,omitempty"`
}

// BatchResult summarizes a completed outreach run.
type BatchResult struct {
	Total    int          `json:"total"`
	Sent     int          `json:"sent"`
	Failed   int          `json:"failed"`
	Skipped  int          `json:"skipped"`
	Results  []SendResult `json:"results"`
	Duration string       `json:"duration"`
}

// Run sends the initial outreach message to every eligible borrower, pausing
// between sends. Delivery happens before persistence so a failed send never
// leaves a message record behind. The run stops early if ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) (*BatchResult, error) {
	logger := utils.GetLogger()
	start := time.Now()

	borrowers, err := d.borrowers.ListOverdue(ctx, d.minOverdue, d.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue borrowers: %w", err)
	}

	result := &BatchResult{Total: len(borrowers)}

	logger.Info("Starting outreach batch",
		zap.Int("borrowers", len(borrowers)),
		zap.Duration("interval", d.interval),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for i, b := range borrowers {
		if i > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				result.Duration = time.Since(start).String()
				return result, ctx.Err()
			}
		}

		r := d.sendOne(ctx, b)
		result.Results = append(result.Results, r)
		switch {
		case r.Sent:
			result.Sent++
		case r.Error != "":
			result.Failed++
		default:
			result.Skipped++
		}
	}

	result.Duration = time.Since(start).String()

	logger.Info("Outreach batch complete",
		zap.Int("total", result.Total),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, b *models.Borrower) SendResult {
	r := SendResult{BorrowerID: b.ID, LoanID: b.LoanID}

	if b.PhoneNumber == "" {
		return r
	}
	if b.PlanStatus == models.PlanStatusAccepted {
		return r
	}

	text := d.outreachText(ctx, b)

	if err := d.sms.Send(ctx, b.PhoneNumber, text); err != nil {
		r.Error = err.Error()
		utils.GetLogger().Warn("Outreach send failed",
			zap.Int64("borrower_id", b.ID),
			zap.Error(err),
		)
		return r
	}

	// Persist only after a successful send.
	if _, err := d.messages.Create(ctx, &models.MessageCreate{
		MessageID:         uuid.NewString(),
		BorrowerID:        b.ID,
		ManagerID:         b.AssignedManager,
		Sender:            models.SenderManager,
		Text:              text,
		ConversationState: models.ConversationInitiated,
		IsAutomated:       true,
	}); err != nil {
		r.Error = err.Error()
		return r
	}

	r.Sent = true
	return r
}

// outreachText picks the first-contact template for a borrower we have never
// messaged, or a follow-up keyed to how long they have been silent.
func (d *Dispatcher) outreachText(ctx context.Context, b *models.Borrower) string {
	last, err := d.messages.LatestAutomated(ctx, b.ID)
	if err != nil || last == nil {
		return conversation.InitialOutreach(b)
	}
	days := int(time.Since(last.CreatedAt).Hours() / 24)
	return conversation.FollowUp(b, days)
}
