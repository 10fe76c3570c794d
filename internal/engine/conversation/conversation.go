package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repayment-negotiation-engine/internal/engine/planner"
	"repayment-negotiation-engine/internal/engine/risksync"
	"repayment-negotiation-engine/internal/engine/scoring"
	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// PlanCooldown is how long a non-explicit distress signal is suppressed
// after a plan offer.
const PlanCooldown = 2 * time.Hour

// BorrowerStore loads borrowers and persists the engine-owned fields.
type BorrowerStore interface {
	GetByID(ctx context.Context, id int64) (*models.Borrower, error)
	UpdateEngineFields(ctx context.Context, id int64, update *models.BorrowerUpdate) error
}

// MessageStore persists conversation messages and answers cooldown queries.
type MessageStore interface {
	Create(ctx context.Context, msg *models.MessageCreate) (*models.Message, error)
	LatestPlanOffer(ctx context.Context, borrowerID int64, since time.Time) (*models.Message, error)
	LatestAutomated(ctx context.Context, borrowerID int64) (*models.Message, error)
}

// RecommendationStore persists EMI recommendations while preserving the
// one-live-offer invariant.
type RecommendationStore interface {
	GetByID(ctx context.Context, id int64) (*models.EMIRecommendation, error)
	// ReplacePending supersedes any Pending recommendations for the borrower
	// and inserts the given ones in a single transaction.
	ReplacePending(ctx context.Context, borrowerID int64, recs []*models.RecommendationCreate) ([]*models.EMIRecommendation, error)
	// CreatePending inserts one Pending recommendation, failing with
	// models.ErrPendingPlanExists if the borrower already has one.
	CreatePending(ctx context.Context, rec *models.RecommendationCreate) (*models.EMIRecommendation, error)
	UpdateStatus(ctx context.Context, id int64, status models.RecommendationStatus) error
	// SupersedePending marks all Pending recommendations for the borrower as
	// Superseded, except the one with the given id.
	SupersedePending(ctx context.Context, borrowerID int64, exceptID int64) (int, error)
	LatestRevision(ctx context.Context, borrowerID int64) (*models.EMIRecommendation, error)
	FirstOriginal(ctx context.Context, borrowerID int64) (*models.EMIRecommendation, error)
	// RestorePlan supersedes all Pending recommendations for the borrower and
	// reinstates the original with the given id as Pending, atomically.
	RestorePlan(ctx context.Context, borrowerID, originalID int64) error
}

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

// AnalysisCache stores the latest composite analysis per borrower.
type AnalysisCache interface {
	StoreAnalysis(ctx context.Context, borrowerID int64, analysis *models.CompositeAnalysis) error
}

// Escalator notifies the assigned manager about critical-risk borrowers.
type Escalator interface {
	NotifyCritical(ctx context.Context, borrower *models.Borrower, analysis *models.CompositeAnalysis) error
}

// Decision is the plan-offer gate computed for one inbound message.
type Decision struct {
	IsDistressed       bool `json:"is_distressed"`
	ExplicitRequest    bool `json:"explicit_request"`
	OfferPlans         bool `json:"offer_plans"`
	CooldownSuppressed bool `json:"cooldown_suppressed"`
}

// Decide evaluates the plan-offer gate. Explicit requests bypass the
// cooldown; distress alone does not.
func Decide(analysis *models.CompositeAnalysis, overdueDays int, text string, cooldownActive bool) Decision {
	d := Decision{ExplicitRequest: DetectPlanRequest(text)}

	switch analysis.StressLevel {
	case models.StressModerate, models.StressHigh, models.StressCritical:
		d.IsDistressed = true
	case models.StressLow:
		d.IsDistressed = overdueDays > 7
	}

	triggered := d.IsDistressed || d.ExplicitRequest || analysis.CompositeScore > 70
	if !triggered {
		return d
	}

	if cooldownActive && !d.ExplicitRequest {
		d.CooldownSuppressed = true
		return d
	}

	d.OfferPlans = true
	return d
}

// InboundResult is the outcome of processing one inbound borrower message.
type InboundResult struct {
	Analysis        *models.CompositeAnalysis   `json:"analysis"`
	RiskLevel       models.RiskLevel            `json:"risk_level"`
	Decision        Decision                    `json:"decision"`
	Response        *models.Message             `json:"response"`
	Recommendations []*models.EMIRecommendation `json:"recommendations,omitempty"`
}

// DecisionResult is the outcome of a borrower acting on a recommendation.
type DecisionResult struct {
	Recommendation *models.EMIRecommendation `json:"recommendation"`
	Revision       *models.EMIRecommendation `json:"revision,omitempty"`
	Message        *models.Message           `json:"message"`
}

// Engine is the conversation state machine.
type Engine struct {
	borrowers BorrowerStore
	messages  MessageStore
	recs      RecommendationStore
	scorer    *scoring.Scorer
	risk      *risksync.Synchronizer
	sms       SMSSender
	cache     AnalysisCache
	escalator Escalator
	locks     *borrowerLocks
	now       func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithSMS attaches an SMS sender.
func WithSMS(sender SMSSender) Option {
	return func(e *Engine) { e.sms = sender }
}

// WithCache attaches an analysis cache.
func WithCache(cache AnalysisCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithEscalator attaches a critical-risk escalator.
func WithEscalator(escalator Escalator) Option {
	return func(e *Engine) { e.escalator = escalator }
}

// withClock overrides the engine clock in tests.
func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a conversation engine.
func NewEngine(borrowers BorrowerStore, messages MessageStore, recs RecommendationStore,
	scorer *scoring.Scorer, risk *risksync.Synchronizer, opts ...Option) *Engine {

	e := &Engine{
		borrowers: borrowers,
		messages:  messages,
		recs:      recs,
		scorer:    scorer,
		risk:      risk,
		locks:     newBorrowerLocks(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessInbound runs the full pipeline for one inbound borrower message:
// score, sync risk, decide, persist, respond.
func (e *Engine) ProcessInbound(ctx context.Context, borrowerID int64, text string) (*InboundResult, error) {
	logger := utils.GetLogger()

	unlock := e.locks.Lock(borrowerID)
	defer unlock()

	borrower, err := e.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower: %w", err)
	}

	scored := e.scorer.Score(ctx, text, borrower, e.responseHours(ctx, borrowerID))
	analysis := &scored
	syncResult := e.risk.Sync(ctx, borrower, text, analysis)

	// Record the inbound message with its scored signal.
	if _, err := e.messages.Create(ctx, &models.MessageCreate{
		MessageID:         uuid.NewString(),
		BorrowerID:        borrowerID,
		Sender:            models.SenderBorrower,
		Text:              text,
		ConversationState: models.ConversationAnalyzing,
		Sentiment:         string(analysis.StressLevel),
		RiskScore:         analysis.CompositeScore,
	}); err != nil {
		return nil, fmt.Errorf("failed to record inbound message: %w", err)
	}

	decision := Decide(analysis, borrower.OverdueDays, text, e.cooldownActive(ctx, borrowerID))

	result := &InboundResult{
		Analysis:  analysis,
		RiskLevel: syncResult.RiskLevel,
		Decision:  decision,
	}

	update := &models.BorrowerUpdate{
		RiskLevel:  syncResult.RiskLevel,
		PlanStatus: borrower.PlanStatus,
		Behavioral: &models.BehavioralSnapshot{
			StressLevel:      analysis.StressLevel,
			PrimaryIssue:     analysis.PrimaryIssue,
			WillingnessToPay: analysis.WillingnessToPay,
			LastAnalysisDate: e.now().UTC(),
			DetailedInsights: Insights(analysis),
		},
	}
	if syncResult.AssignedExecutive != nil {
		update.AssignedExecutive = &syncResult.AssignedExecutive.ID
	}

	if decision.OfferPlans {
		pair := planner.GeneratePlans(borrower, analysis.StressLevel)
		recs, err := e.recs.ReplacePending(ctx, borrowerID, []*models.RecommendationCreate{
			recommendationFromTerms(borrower, syncResult.RiskLevel, pair.PlanA, models.PlanTypeA),
			recommendationFromTerms(borrower, syncResult.RiskLevel, pair.PlanB, models.PlanTypeB),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create recommendations: %w", err)
		}
		result.Recommendations = recs
		update.PlanStatus = models.PlanStatusPending

		result.Response, err = e.respond(ctx, borrower, &models.MessageCreate{
			BorrowerID:        borrowerID,
			Text:              PlanOfferText(borrower.CustomerName, analysis, pair),
			ConversationState: models.ConversationPlanSuggested,
			Metadata:          &models.MessageMetadata{Analysis: analysis, PlansOffered: &pair},
		})
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		result.Response, err = e.respond(ctx, borrower, &models.MessageCreate{
			BorrowerID:        borrowerID,
			Text:              EmpathyReply(borrower.CustomerName, analysis, text),
			ConversationState: models.ConversationAwaitingResponse,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := e.borrowers.UpdateEngineFields(ctx, borrowerID, update); err != nil {
		return nil, fmt.Errorf("failed to update borrower: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.StoreAnalysis(ctx, borrowerID, analysis); err != nil {
			logger.Warn("Failed to cache analysis", zap.Int64("borrower_id", borrowerID), zap.Error(err))
		}
	}

	if e.escalator != nil && syncResult.RiskLevel == models.RiskLevelCritical {
		if err := e.escalator.NotifyCritical(ctx, borrower, analysis); err != nil {
			logger.Warn("Failed to send escalation", zap.Int64("borrower_id", borrowerID), zap.Error(err))
		}
	}

	logger.Info("Inbound message processed",
		zap.Int64("borrower_id", borrowerID),
		zap.Int("composite", analysis.CompositeScore),
		zap.String("stress", string(analysis.StressLevel)),
		zap.String("risk", string(syncResult.RiskLevel)),
		zap.Bool("plans_offered", decision.OfferPlans),
	)

	return result, nil
}

// DecideOnRecommendation applies a borrower's accept/reject action to a
// Pending recommendation and runs the chaining rules.
func (e *Engine) DecideOnRecommendation(ctx context.Context, recommendationID int64, accepted bool) (*DecisionResult, error) {
	rec, err := e.recs.GetByID(ctx, recommendationID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(rec.BorrowerID)
	defer unlock()

	// Re-read inside the critical section. A concurrent decision may have
	// resolved the recommendation between the first fetch and the lock.
	rec, err = e.recs.GetByID(ctx, recommendationID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RecommendationPending {
		return nil, models.ErrRecommendationResolved
	}

	borrower, err := e.borrowers.GetByID(ctx, rec.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower: %w", err)
	}

	newStatus := models.RecommendationRejected
	planStatus := models.PlanStatusRejected
	if accepted {
		newStatus = models.RecommendationAccepted
		planStatus = models.PlanStatusAccepted
	}

	if err := e.recs.UpdateStatus(ctx, rec.ID, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}
	rec.Status = newStatus

	// The sibling of a decided pair must not stay live.
	if _, err := e.recs.SupersedePending(ctx, rec.BorrowerID, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to supersede sibling plans: %w", err)
	}

	result := &DecisionResult{Recommendation: rec}

	text := DeclineText()
	state := models.ConversationPlanRejected
	if accepted {
		text = AcceptanceText(rec)
		state = models.ConversationPlanAccepted
	}

	result.Message, err = e.respond(ctx, borrower, &models.MessageCreate{
		BorrowerID:        rec.BorrowerID,
		Text:              text,
		ConversationState: state,
		Metadata:          &models.MessageMetadata{Action: string(newStatus), PlanDetails: ptrTerms(rec.Terms())},
	})
	if err != nil {
		return nil, err
	}

	if !accepted {
		// Rejection chains a fixed lenient revision and reopens the offer.
		terms := planner.GenerateRevision(borrower.LoanAmount)
		revision, err := e.recs.CreatePending(ctx, &models.RecommendationCreate{
			BorrowerID:     rec.BorrowerID,
			ManagerID:      rec.ManagerID,
			RiskLevel:      models.RiskLevelHigh,
			SuggestedEMI:   terms.SuggestedEMI,
			ExtendedTenure: terms.ExtendedTenure,
			GracePeriod:    terms.GracePeriod,
			InterestWaiver: terms.InterestWaiver,
			PlanType:       models.PlanTypeCustom,
			AutoRevised:    true,
			IsAutomated:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create revision: %w", err)
		}
		result.Revision = revision
		planStatus = models.PlanStatusPending
	}

	if err := e.borrowers.UpdateEngineFields(ctx, rec.BorrowerID, &models.BorrowerUpdate{
		RiskLevel:  borrower.RiskLevel,
		PlanStatus: planStatus,
		Behavioral: borrower.Behavioral,
	}); err != nil {
		return nil, fmt.Errorf("failed to update borrower: %w", err)
	}

	utils.GetLogger().Info("Recommendation decided",
		zap.Int64("borrower_id", rec.BorrowerID),
		zap.Int64("recommendation_id", rec.ID),
		zap.String("status", string(newStatus)),
	)

	return result, nil
}

// RestoreOriginal supersedes the chained auto-revision and reinstates the
// first, non-revised recommendation as Pending.
func (e *Engine) RestoreOriginal(ctx context.Context, borrowerID int64) (*models.EMIRecommendation, error) {
	unlock := e.locks.Lock(borrowerID)
	defer unlock()

	borrower, err := e.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower: %w", err)
	}

	// Restoring only makes sense while the auto-revision is still the live
	// offer. A superseded revision means a newer pair displaced it.
	revision, err := e.recs.LatestRevision(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if revision == nil || revision.Status != models.RecommendationPending {
		return nil, models.ErrNoRevisionToRestore
	}

	original, err := e.recs.FirstOriginal(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, models.ErrRecommendationNotFound
	}

	if err := e.recs.RestorePlan(ctx, borrowerID, original.ID); err != nil {
		return nil, fmt.Errorf("failed to restore original plan: %w", err)
	}
	original.Status = models.RecommendationPending

	if err := e.borrowers.UpdateEngineFields(ctx, borrowerID, &models.BorrowerUpdate{
		RiskLevel:  borrower.RiskLevel,
		PlanStatus: models.PlanStatusPending,
		Behavioral: borrower.Behavioral,
	}); err != nil {
		return nil, fmt.Errorf("failed to update borrower: %w", err)
	}

	return original, nil
}

// Resolve closes out a conversation whose offer reached a terminal decision.
func (e *Engine) Resolve(ctx context.Context, borrowerID int64) (*models.Message, error) {
	unlock := e.locks.Lock(borrowerID)
	defer unlock()

	borrower, err := e.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower: %w", err)
	}

	return e.respond(ctx, borrower, &models.MessageCreate{
		BorrowerID:        borrowerID,
		Text:              ResolutionText(borrower.CustomerName),
		ConversationState: models.ConversationResolved,
	})
}

// respond persists an automated manager-side message and best-effort sends it
// as an SMS. Inbound processing must not fail on transport errors.
func (e *Engine) respond(ctx context.Context, borrower *models.Borrower, msg *models.MessageCreate) (*models.Message, error) {
	msg.MessageID = uuid.NewString()
	msg.Sender = models.SenderManager
	msg.IsAutomated = true
	msg.ManagerID = borrower.AssignedManager

	created, err := e.messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to record response: %w", err)
	}

	if e.sms != nil && borrower.PhoneNumber != "" {
		if err := e.sms.Send(ctx, borrower.PhoneNumber, msg.Text); err != nil {
			utils.GetLogger().Warn("SMS delivery failed",
				zap.Int64("borrower_id", borrower.ID), zap.Error(err))
		}
	}

	return created, nil
}

func (e *Engine) cooldownActive(ctx context.Context, borrowerID int64) bool {
	since := e.now().Add(-PlanCooldown)
	msg, err := e.messages.LatestPlanOffer(ctx, borrowerID, since)
	if err != nil {
		utils.GetLogger().Warn("Cooldown lookup failed",
			zap.Int64("borrower_id", borrowerID), zap.Error(err))
		return false
	}
	return msg != nil
}

func (e *Engine) responseHours(ctx context.Context, borrowerID int64) float64 {
	msg, err := e.messages.LatestAutomated(ctx, borrowerID)
	if err != nil || msg == nil {
		return 0
	}
	return e.now().Sub(msg.CreatedAt).Hours()
}

func recommendationFromTerms(b *models.Borrower, risk models.RiskLevel, terms models.PlanTerms, planType models.PlanType) *models.RecommendationCreate {
	return &models.RecommendationCreate{
		BorrowerID:     b.ID,
		ManagerID:      b.AssignedManager,
		RiskLevel:      risk,
		SuggestedEMI:   terms.SuggestedEMI,
		ExtendedTenure: terms.ExtendedTenure,
		GracePeriod:    terms.GracePeriod,
		InterestWaiver: terms.InterestWaiver,
		PlanType:       planType,
		IsAutomated:    true,
	}
}

func ptrTerms(t models.PlanTerms) *models.PlanTerms {
	return &t
}
