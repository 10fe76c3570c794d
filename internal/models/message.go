// Package models defines the data structures for the repayment negotiation engine.
package models

import (
	"time"
)

// MessageSender identifies which side of the conversation produced a message.
type MessageSender string

const (
	SenderBorrower MessageSender = "borrower"
	SenderManager  MessageSender = "manager"
)

// ConversationState tracks where a borrower conversation stands.
type ConversationState string

const (
	ConversationInitiated        ConversationState = "initiated"
	ConversationAwaitingResponse ConversationState = "awaiting_response"
	ConversationAnalyzing        ConversationState = "analyzing"
	ConversationPlanSuggested    ConversationState = "plan_suggested"
	ConversationPlanAccepted     ConversationState = "plan_accepted"
	ConversationPlanRejected     ConversationState = "plan_rejected"
	ConversationResolved         ConversationState = "resolved"
)

// ValidConversationStates returns all valid conversation state values.
func ValidConversationStates() []ConversationState {
	return []ConversationState{
		ConversationInitiated,
		ConversationAwaitingResponse,
		ConversationAnalyzing,
		ConversationPlanSuggested,
		ConversationPlanAccepted,
		ConversationPlanRejected,
		ConversationResolved,
	}
}

// IsValid checks if the conversation state is valid.
func (s ConversationState) IsValid() bool {
	for _, valid := range ValidConversationStates() {
		if s == valid {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automated transitions happen from here.
func (s ConversationState) IsTerminal() bool {
	return s == ConversationResolved
}

// MessageMetadata is the audit trail tying a plan offer to the analysis that
// produced it. It is only populated on plan_suggested messages.
type MessageMetadata struct {
	Analysis     *CompositeAnalysis `json:"analysis,omitempty"`
	PlansOffered *PlanPair          `json:"plans_offered,omitempty"`
	PlanDetails  *PlanTerms         `json:"plan_details,omitempty"`
	Action       string             `json:"action,omitempty"`
}

// Message is a directional record in a borrower conversation.
type Message struct {
	ID                int64             `json:"id" db:"id"`
	MessageID         string            `json:"message_id" db:"message_id"`
	BorrowerID        int64             `json:"borrower_id" db:"borrower_id"`
	ManagerID         *int64            `json:"manager_id,omitempty" db:"manager_id"`
	Sender            MessageSender     `json:"sender" db:"sender"`
	Text              string            `json:"text" db:"text"`
	ConversationState ConversationState `json:"conversation_state" db:"conversation_state"`
	Metadata          *MessageMetadata  `json:"metadata,omitempty"`
	Sentiment         string            `json:"sentiment,omitempty" db:"sentiment"`
	RiskScore         int               `json:"risk_score" db:"risk_score"`
	IsAutomated       bool              `json:"is_automated" db:"is_automated"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// MessageCreate represents the data needed to persist a new message.
type MessageCreate struct {
	MessageID         string            `json:"message_id"`
	BorrowerID        int64             `json:"borrower_id" validate:"required"`
	ManagerID         *int64            `json:"manager_id,omitempty"`
	Sender            MessageSender     `json:"sender"`
	Text              string            `json:"text"`
	ConversationState ConversationState `json:"conversation_state"`
	Metadata          *MessageMetadata  `json:"metadata,omitempty"`
	Sentiment         string            `json:"sentiment,omitempty"`
	RiskScore         int               `json:"risk_score"`
	IsAutomated       bool              `json:"is_automated"`
}
