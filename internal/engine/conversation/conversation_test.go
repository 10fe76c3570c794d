package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repayment-negotiation-engine/internal/engine/risksync"
	"repayment-negotiation-engine/internal/engine/scoring"
	"repayment-negotiation-engine/internal/models"
)

// stubClassifier feeds the scorer a fixed signal.
type stubClassifier struct {
	signal models.ClassifierSignal
}

func (s *stubClassifier) Classify(_ context.Context, _ string) models.ClassifierSignal {
	return s.signal
}

type fakeBorrowerStore struct {
	borrowers  map[int64]*models.Borrower
	lastUpdate *models.BorrowerUpdate
}

func (f *fakeBorrowerStore) GetByID(_ context.Context, id int64) (*models.Borrower, error) {
	b, ok := f.borrowers[id]
	if !ok {
		return nil, models.ErrBorrowerNotFound
	}
	return b, nil
}

func (f *fakeBorrowerStore) UpdateEngineFields(_ context.Context, id int64, update *models.BorrowerUpdate) error {
	b, ok := f.borrowers[id]
	if !ok {
		return models.ErrBorrowerNotFound
	}
	b.RiskLevel = update.RiskLevel
	b.PlanStatus = update.PlanStatus
	b.Behavioral = update.Behavioral
	if update.AssignedExecutive != nil {
		b.AssignedExecutive = update.AssignedExecutive
	}
	f.lastUpdate = update
	return nil
}

type fakeMessageStore struct {
	messages []*models.Message
	now      time.Time
	nextID   int64
}

func (f *fakeMessageStore) Create(_ context.Context, msg *models.MessageCreate) (*models.Message, error) {
	f.nextID++
	created := &models.Message{
		ID:                f.nextID,
		MessageID:         msg.MessageID,
		BorrowerID:        msg.BorrowerID,
		ManagerID:         msg.ManagerID,
		Sender:            msg.Sender,
		Text:              msg.Text,
		ConversationState: msg.ConversationState,
		Metadata:          msg.Metadata,
		Sentiment:         msg.Sentiment,
		RiskScore:         msg.RiskScore,
		IsAutomated:       msg.IsAutomated,
		CreatedAt:         f.now,
	}
	f.messages = append(f.messages, created)
	return created, nil
}

func (f *fakeMessageStore) LatestPlanOffer(_ context.Context, borrowerID int64, since time.Time) (*models.Message, error) {
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.BorrowerID == borrowerID && m.ConversationState == models.ConversationPlanSuggested && !m.CreatedAt.Before(since) {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageStore) LatestAutomated(_ context.Context, borrowerID int64) (*models.Message, error) {
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.BorrowerID == borrowerID && m.IsAutomated {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageStore) lastMessage() *models.Message {
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

type fakeRecStore struct {
	recs      []*models.EMIRecommendation
	nextID    int64
	onGetByID func()
}

func (f *fakeRecStore) insert(rec *models.RecommendationCreate) *models.EMIRecommendation {
	f.nextID++
	created := &models.EMIRecommendation{
		ID:             f.nextID,
		BorrowerID:     rec.BorrowerID,
		ManagerID:      rec.ManagerID,
		RiskLevel:      rec.RiskLevel,
		SuggestedEMI:   rec.SuggestedEMI,
		ExtendedTenure: rec.ExtendedTenure,
		GracePeriod:    rec.GracePeriod,
		InterestWaiver: rec.InterestWaiver,
		PlanType:       rec.PlanType,
		Status:         models.RecommendationPending,
		AutoRevised:    rec.AutoRevised,
		IsAutomated:    rec.IsAutomated,
	}
	f.recs = append(f.recs, created)
	return created
}

func (f *fakeRecStore) GetByID(_ context.Context, id int64) (*models.EMIRecommendation, error) {
	var found *models.EMIRecommendation
	for _, r := range f.recs {
		if r.ID == id {
			found = r
			break
		}
	}
	if f.onGetByID != nil {
		f.onGetByID()
	}
	if found == nil {
		return nil, models.ErrRecommendationNotFound
	}
	return found, nil
}

func (f *fakeRecStore) ReplacePending(_ context.Context, borrowerID int64, recs []*models.RecommendationCreate) ([]*models.EMIRecommendation, error) {
	for _, r := range f.recs {
		if r.BorrowerID == borrowerID && r.Status == models.RecommendationPending {
			r.Status = models.RecommendationSuperseded
		}
	}
	created := make([]*models.EMIRecommendation, 0, len(recs))
	for _, rec := range recs {
		created = append(created, f.insert(rec))
	}
	return created, nil
}

func (f *fakeRecStore) CreatePending(_ context.Context, rec *models.RecommendationCreate) (*models.EMIRecommendation, error) {
	for _, r := range f.recs {
		if r.BorrowerID == rec.BorrowerID && r.Status == models.RecommendationPending {
			return nil, models.ErrPendingPlanExists
		}
	}
	return f.insert(rec), nil
}

func (f *fakeRecStore) UpdateStatus(_ context.Context, id int64, status models.RecommendationStatus) error {
	for _, r := range f.recs {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return models.ErrRecommendationNotFound
}

func (f *fakeRecStore) SupersedePending(_ context.Context, borrowerID int64, exceptID int64) (int, error) {
	count := 0
	for _, r := range f.recs {
		if r.BorrowerID == borrowerID && r.Status == models.RecommendationPending && r.ID != exceptID {
			r.Status = models.RecommendationSuperseded
			count++
		}
	}
	return count, nil
}

func (f *fakeRecStore) LatestRevision(_ context.Context, borrowerID int64) (*models.EMIRecommendation, error) {
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].BorrowerID == borrowerID && f.recs[i].AutoRevised {
			return f.recs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRecStore) FirstOriginal(_ context.Context, borrowerID int64) (*models.EMIRecommendation, error) {
	for _, r := range f.recs {
		if r.BorrowerID == borrowerID && !r.AutoRevised {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecStore) RestorePlan(_ context.Context, borrowerID, originalID int64) error {
	for _, r := range f.recs {
		if r.BorrowerID == borrowerID && r.Status == models.RecommendationPending {
			r.Status = models.RecommendationSuperseded
		}
	}
	for _, r := range f.recs {
		if r.ID == originalID && r.BorrowerID == borrowerID {
			r.Status = models.RecommendationPending
			return nil
		}
	}
	return models.ErrRecommendationNotFound
}

func (f *fakeRecStore) pending(borrowerID int64) []*models.EMIRecommendation {
	var out []*models.EMIRecommendation
	for _, r := range f.recs {
		if r.BorrowerID == borrowerID && r.Status == models.RecommendationPending {
			out = append(out, r)
		}
	}
	return out
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, _ string, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type fakeEscalator struct {
	calls int
}

func (f *fakeEscalator) NotifyCritical(_ context.Context, _ *models.Borrower, _ *models.CompositeAnalysis) error {
	f.calls++
	return nil
}

type testEnv struct {
	engine    *Engine
	borrowers *fakeBorrowerStore
	messages  *fakeMessageStore
	recs      *fakeRecStore
	sms       *fakeSMS
	escalator *fakeEscalator
	now       time.Time
}

func newTestEnv(t *testing.T, borrower *models.Borrower, classifierSignal models.ClassifierSignal) *testEnv {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{
		borrowers: &fakeBorrowerStore{borrowers: map[int64]*models.Borrower{borrower.ID: borrower}},
		messages:  &fakeMessageStore{now: now},
		recs:      &fakeRecStore{},
		sms:       &fakeSMS{},
		escalator: &fakeEscalator{},
		now:       now,
	}

	scorer := scoring.NewScorer(&stubClassifier{signal: classifierSignal})
	env.engine = NewEngine(env.borrowers, env.messages, env.recs, scorer, risksync.New(nil),
		WithSMS(env.sms),
		WithEscalator(env.escalator),
		withClock(func() time.Time { return env.now }),
	)
	return env
}

func distressedBorrower() *models.Borrower {
	return &models.Borrower{
		ID:                 1,
		LoanID:             "LN-1001",
		CustomerName:       "Asha",
		PhoneNumber:        "+919800011111",
		LoanAmount:         240000,
		OutstandingBalance: 200000,
		EMIAmount:          10000,
		IsOverdue:          true,
		OverdueDays:        50,
		RiskLevel:          models.RiskLevelPending,
		PlanStatus:         models.PlanStatusNone,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		stress      models.StressLevel
		score       int
		overdueDays int
		text        string
		cooldown    bool
		wantOffer   bool
		wantSupp    bool
	}{
		{"high stress offers", models.StressHigh, 80, 10, "I lost my job", false, true, false},
		{"moderate stress offers", models.StressModerate, 50, 0, "things are tight", false, true, false},
		{"low stress not overdue stays quiet", models.StressLow, 30, 0, "all good", false, false, false},
		{"low stress deep overdue offers", models.StressLow, 30, 11, "hello", false, true, false},
		{"low stress barely overdue stays quiet", models.StressLow, 30, 7, "hello", false, false, false},
		{"high composite alone offers", models.StressLow, 71, 0, "hello", false, true, false},
		{"cooldown suppresses distress", models.StressHigh, 80, 10, "I lost my job", true, false, true},
		{"explicit request bypasses cooldown", models.StressHigh, 80, 10, "show me the plans", true, true, false},
		{"explicit request alone offers", models.StressLow, 10, 0, "send me plans please", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := &models.CompositeAnalysis{CompositeScore: tt.score, StressLevel: tt.stress}
			d := Decide(analysis, tt.overdueDays, tt.text, tt.cooldown)

			assert.Equal(t, tt.wantOffer, d.OfferPlans)
			assert.Equal(t, tt.wantSupp, d.CooldownSuppressed)
		})
	}
}

func TestProcessInboundOffersPlans(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	result, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)

	assert.True(t, result.Decision.OfferPlans)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, models.PlanTypeA, result.Recommendations[0].PlanType)
	assert.Equal(t, models.PlanTypeB, result.Recommendations[1].PlanType)
	assert.True(t, result.Recommendations[0].IsAutomated)

	// Inbound message plus the plan offer were recorded.
	require.Len(t, env.messages.messages, 2)
	inbound, offer := env.messages.messages[0], env.messages.messages[1]
	assert.Equal(t, models.SenderBorrower, inbound.Sender)
	assert.False(t, inbound.IsAutomated)
	assert.Equal(t, models.ConversationPlanSuggested, offer.ConversationState)
	assert.True(t, offer.IsAutomated)
	require.NotNil(t, offer.Metadata)
	assert.NotNil(t, offer.Metadata.Analysis)
	assert.NotNil(t, offer.Metadata.PlansOffered)

	// Borrower state moved to a pending offer.
	b := env.borrowers.borrowers[1]
	assert.Equal(t, models.PlanStatusPending, b.PlanStatus)
	require.NotNil(t, b.Behavioral)
	assert.NotEmpty(t, b.Behavioral.DetailedInsights)

	require.Len(t, env.sms.sent, 1)
	assert.Contains(t, env.sms.sent[0], "Plan A")
	assert.Contains(t, env.sms.sent[0], "Plan B")
}

func TestProcessInboundLowStressDeepOverdueOffersPlans(t *testing.T) {
	b := &models.Borrower{
		ID:                 1,
		CustomerName:       "Ravi",
		PhoneNumber:        "+919800022222",
		LoanAmount:         100000,
		OutstandingBalance: 40000,
		EMIAmount:          8000,
		IsOverdue:          true,
		OverdueDays:        11,
	}
	env := newTestEnv(t, b, models.ClassifierSignal{Score: 25, Severity: "Low", IsML: true})

	result, err := env.engine.ProcessInbound(context.Background(), 1, "hello there")
	require.NoError(t, err)

	assert.Equal(t, models.StressLow, result.Analysis.StressLevel)
	assert.True(t, result.Decision.IsDistressed)
	assert.True(t, result.Decision.OfferPlans)
	assert.Len(t, result.Recommendations, 2)
}

func TestProcessInboundCalmBorrowerGetsEmpathyOnly(t *testing.T) {
	b := &models.Borrower{
		ID:           1,
		CustomerName: "Meena",
		PhoneNumber:  "+919800033333",
		LoanAmount:   100000,
		EMIAmount:    8000,
	}
	env := newTestEnv(t, b, models.ClassifierSignal{Score: 25, Severity: "Low", IsML: true})

	result, err := env.engine.ProcessInbound(context.Background(), 1, "all fine, paying on time")
	require.NoError(t, err)

	assert.False(t, result.Decision.OfferPlans)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, models.ConversationAwaitingResponse, result.Response.ConversationState)
	assert.Empty(t, env.recs.recs)
}

func TestProcessInboundCooldownSuppressesRepeatOffer(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	_, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)

	// One hour later the same distress does not re-offer.
	env.now = env.now.Add(time.Hour)
	env.messages.now = env.now

	result, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job and it is getting worse")
	require.NoError(t, err)

	assert.False(t, result.Decision.OfferPlans)
	assert.True(t, result.Decision.CooldownSuppressed)
	assert.Equal(t, models.ConversationAwaitingResponse, result.Response.ConversationState)
	assert.Len(t, env.recs.pending(1), 2) // still the original pair
}

func TestProcessInboundExplicitRequestBypassesCooldown(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	first, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	firstIDs := []int64{first.Recommendations[0].ID, first.Recommendations[1].ID}

	env.now = env.now.Add(time.Hour)
	env.messages.now = env.now

	result, err := env.engine.ProcessInbound(context.Background(), 1, "please show me the plans again")
	require.NoError(t, err)

	assert.True(t, result.Decision.ExplicitRequest)
	assert.True(t, result.Decision.OfferPlans)
	require.Len(t, result.Recommendations, 2)

	// The fresh pair replaced the stale one.
	pending := env.recs.pending(1)
	require.Len(t, pending, 2)
	for _, p := range pending {
		assert.NotContains(t, firstIDs, p.ID)
	}
	for _, id := range firstIDs {
		rec, err := env.recs.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.RecommendationSuperseded, rec.Status)
	}
}

func TestProcessInboundCooldownExpires(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	_, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)

	env.now = env.now.Add(PlanCooldown + time.Minute)
	env.messages.now = env.now

	result, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job and it is getting worse")
	require.NoError(t, err)

	assert.True(t, result.Decision.OfferPlans)
	assert.False(t, result.Decision.CooldownSuppressed)
}

func TestProcessInboundCriticalEscalates(t *testing.T) {
	b := distressedBorrower()
	b.OutstandingBalance = 230000
	b.EMIAmount = 48000
	b.OverdueDays = 120
	env := newTestEnv(t, b, models.ClassifierSignal{Score: 95, Severity: "Critical", IsML: true})

	result, err := env.engine.ProcessInbound(context.Background(), 1, "I can't pay, no money")
	require.NoError(t, err)

	assert.Equal(t, models.StressCritical, result.Analysis.StressLevel)
	assert.Equal(t, models.RiskLevelCritical, result.RiskLevel)
	assert.Equal(t, 1, env.escalator.calls)
}

func TestProcessInboundToleratesSMSFailure(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})
	env.sms.err = errors.New("carrier down")

	result, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	assert.True(t, result.Decision.OfferPlans)
	assert.NotNil(t, result.Response)
}

func TestProcessInboundUnknownBorrower(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	_, err := env.engine.ProcessInbound(context.Background(), 99, "hello")
	assert.ErrorIs(t, err, models.ErrBorrowerNotFound)
}

func TestAcceptPlan(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA, planB := offer.Recommendations[0], offer.Recommendations[1]

	result, err := env.engine.DecideOnRecommendation(context.Background(), planA.ID, true)
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationAccepted, result.Recommendation.Status)
	assert.Nil(t, result.Revision)
	assert.Equal(t, models.ConversationPlanAccepted, result.Message.ConversationState)

	// The sibling offer is no longer live.
	sibling, err := env.recs.GetByID(context.Background(), planB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationSuperseded, sibling.Status)

	assert.Equal(t, models.PlanStatusAccepted, env.borrowers.borrowers[1].PlanStatus)
	assert.Contains(t, env.sms.sent[len(env.sms.sent)-1], "PLAN ACCEPTED")
}

func TestRejectPlanChainsRevision(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA := offer.Recommendations[0]

	result, err := env.engine.DecideOnRecommendation(context.Background(), planA.ID, false)
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationRejected, result.Recommendation.Status)
	require.NotNil(t, result.Revision)
	assert.True(t, result.Revision.AutoRevised)
	assert.Equal(t, models.PlanTypeCustom, result.Revision.PlanType)
	assert.Equal(t, 9000, result.Revision.SuggestedEMI) // 240000/12 * 0.45
	assert.Equal(t, 12, result.Revision.ExtendedTenure)
	assert.Equal(t, 30, result.Revision.GracePeriod)

	// The revision is the only live offer and the borrower is back to pending.
	pending := env.recs.pending(1)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Revision.ID, pending[0].ID)
	assert.Equal(t, models.PlanStatusPending, env.borrowers.borrowers[1].PlanStatus)
}

func TestDecideOnResolvedRecommendationFails(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA := offer.Recommendations[0]

	_, err = env.engine.DecideOnRecommendation(context.Background(), planA.ID, true)
	require.NoError(t, err)

	_, err = env.engine.DecideOnRecommendation(context.Background(), planA.ID, false)
	assert.ErrorIs(t, err, models.ErrRecommendationResolved)
}

func TestRestoreOriginal(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA := offer.Recommendations[0]

	_, err = env.engine.DecideOnRecommendation(context.Background(), planA.ID, false)
	require.NoError(t, err)

	restored, err := env.engine.RestoreOriginal(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, planA.ID, restored.ID)
	assert.Equal(t, models.RecommendationPending, restored.Status)

	// The revision was retired.
	revision, err := env.recs.LatestRevision(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationSuperseded, revision.Status)

	assert.Equal(t, models.PlanStatusPending, env.borrowers.borrowers[1].PlanStatus)
}

func TestRestoreOriginalWithoutRevision(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	_, err := env.engine.RestoreOriginal(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNoRevisionToRestore)
}

func TestRestoreOriginalAfterReplacedPairFails(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA := offer.Recommendations[0]

	_, err = env.engine.DecideOnRecommendation(context.Background(), planA.ID, false)
	require.NoError(t, err)

	// An explicit request displaces the revision with a fresh pair. The
	// superseded revision must no longer be restorable.
	fresh, err := env.engine.ProcessInbound(context.Background(), 1, "please show me the plans again")
	require.NoError(t, err)
	require.Len(t, fresh.Recommendations, 2)

	_, err = env.engine.RestoreOriginal(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNoRevisionToRestore)

	// The fresh pair stays the only live offer and the rejected plan stays
	// rejected.
	pending := env.recs.pending(1)
	require.Len(t, pending, 2)
	assert.Equal(t, fresh.Recommendations[0].ID, pending[0].ID)
	assert.Equal(t, fresh.Recommendations[1].ID, pending[1].ID)

	rejected, err := env.recs.GetByID(context.Background(), planA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationRejected, rejected.Status)
}

func TestConcurrentDecisionsOnlyFirstApplies(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	offer, err := env.engine.ProcessInbound(context.Background(), 1, "I lost my job last month")
	require.NoError(t, err)
	planA := offer.Recommendations[0]
	recorded := len(env.messages.messages)

	fetched := make(chan struct{}, 2)
	env.recs.onGetByID = func() { fetched <- struct{}{} }

	// Hold the borrower lock so the decision stalls after its first fetch,
	// then resolve the recommendation before letting it through. The decision
	// must notice the resolution when it re-reads under the lock.
	unlock := env.engine.locks.Lock(1)

	errs := make(chan error, 1)
	go func() {
		_, err := env.engine.DecideOnRecommendation(context.Background(), planA.ID, false)
		errs <- err
	}()

	<-fetched
	require.NoError(t, env.recs.UpdateStatus(context.Background(), planA.ID, models.RecommendationAccepted))
	unlock()

	assert.ErrorIs(t, <-errs, models.ErrRecommendationResolved)

	// The losing decision produced no revision and no message.
	revision, err := env.recs.LatestRevision(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, revision)
	assert.Len(t, env.messages.messages, recorded)
}

func TestResolve(t *testing.T) {
	env := newTestEnv(t, distressedBorrower(), models.ClassifierSignal{Score: 85, Severity: "High", IsML: true})

	msg, err := env.engine.Resolve(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.ConversationResolved, msg.ConversationState)
	assert.True(t, msg.IsAutomated)
	assert.Contains(t, msg.Text, "Asha")
}

func TestDetectPlanRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"show me the plans", true},
		{"can you send the plans again", true},
		{"what are my options", true},
		{"I want to view the plan details", true},
		{"I lost my job", false},
		{"I have a plan for my life", false},
		{"hello", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPlanRequest(tt.text), "text=%q", tt.text)
	}
}

func TestBorrowerLocksSerialize(t *testing.T) {
	locks := newBorrowerLocks()

	unlock := locks.Lock(1)
	acquired := make(chan struct{})
	go func() {
		u := locks.Lock(1)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}

	// Entry map is cleaned up after the last unlock.
	time.Sleep(10 * time.Millisecond)
	locks.mu.Lock()
	assert.Empty(t, locks.entries)
	locks.mu.Unlock()
}
