// Package conversation orchestrates the per-borrower negotiation state
// machine: scoring inbound messages, deciding between empathy-only replies
// and plan offers, and governing the recommendation lifecycle.
package conversation

import (
	"fmt"
	"strings"

	"repayment-negotiation-engine/internal/models"
)

// planRequestPhrases are fixed phrasings that count as an explicit plan request.
var planRequestPhrases = []string{
	"show me the plans", "send plans", "send the plans", "what are the plans",
	"what plans", "repayment plans", "repayment options", "emi plans", "show plans", "again",
	"repeat plans", "share plans", "send me plans", "get the plans", "available plans",
	"what options", "what are my options", "any options", "help me with plans",
}

// planRequestActions are request verbs that, co-occurring with "plan",
// count as an explicit request.
var planRequestActions = []string{"get", "show", "send", "view", "what", "once", "again", "repeat"}

// DetectPlanRequest reports whether the borrower is explicitly asking to see
// repayment plans. Explicit requests bypass the plan-offer cooldown.
func DetectPlanRequest(text string) bool {
	lower := strings.ToLower(text)

	for _, phrase := range planRequestPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	if !strings.Contains(lower, "plan") {
		return false
	}
	for _, action := range planRequestActions {
		if strings.Contains(lower, action) {
			return true
		}
	}
	return false
}

// InitialOutreach builds the first automated message to an overdue borrower.
// The template hardens slightly with overdue severity.
func InitialOutreach(b *models.Borrower) string {
	switch {
	case b.OverdueDays > 60:
		return fmt.Sprintf("Dear %s, your EMI payment of ₹%.0f is %d days overdue. We understand that sometimes circumstances can be challenging. Please let us know if you're experiencing any difficulties, and we'll work together to find a solution.",
			b.CustomerName, b.EMIAmount, b.OverdueDays)
	case b.OverdueDays > 30:
		return fmt.Sprintf("Hi %s, we wanted to reach out regarding your EMI payment which is %d days past due. Is everything alright? We're committed to helping our customers through difficult times. Please share any concerns you may have.",
			b.CustomerName, b.OverdueDays)
	default:
		return fmt.Sprintf("Hello %s, we noticed your EMI payment is overdue by %d days. We hope everything is okay. If you're facing any difficulties, we're here to help. Could you please let us know if there's anything we can do to assist you?",
			b.CustomerName, b.OverdueDays)
	}
}

// FollowUp builds a reminder for a borrower who has not responded.
func FollowUp(b *models.Borrower, daysSinceLastMessage int) string {
	switch {
	case daysSinceLastMessage <= 3:
		return fmt.Sprintf("Hi %s, I wanted to follow up on my previous message. We're here to help you with your payment situation. Please let us know if you have any questions or concerns.", b.CustomerName)
	case daysSinceLastMessage <= 7:
		return fmt.Sprintf("Dear %s, we haven't heard from you yet. We genuinely want to help you resolve your overdue payment. Our team is ready to work with you on a solution. Please reach out at your earliest convenience.", b.CustomerName)
	default:
		return fmt.Sprintf("Hello %s, this is a final reminder about your overdue payment. We've been trying to reach you to discuss flexible payment options. Please contact us as soon as possible to avoid further action.", b.CustomerName)
	}
}

// EmpathyReply builds the text-only automated response for a borrower whose
// message does not trigger a plan offer.
func EmpathyReply(name string, analysis *models.CompositeAnalysis, text string) string {
	greeting := fmt.Sprintf("Hello %s,", name)
	lower := strings.ToLower(text)

	hasJobIssue := strings.Contains(lower, "job") || strings.Contains(lower, "work") ||
		strings.Contains(lower, "unemployed") || strings.Contains(lower, "layoff")
	hasMedicalIssue := strings.Contains(lower, "medical") || strings.Contains(lower, "health") ||
		strings.Contains(lower, "hospital") || strings.Contains(lower, "emergency") ||
		strings.Contains(lower, "family")
	hasPressure := strings.Contains(lower, "pressure") || strings.Contains(lower, "reminders") ||
		strings.Contains(lower, "stressed")

	var body string
	switch {
	case analysis.StressLevel == models.StressHigh || analysis.StressLevel == models.StressCritical || hasPressure:
		switch {
		case hasJobIssue:
			body = "I'm deeply sorry to hear about your job loss. We truly understand the immense pressure you must be under. Please stay calm, we are here to support you, not add more stress. We've prepared a highly flexible plan with significant reductions and extra time to help you get back on your feet. Would you like to see these options?"
		case hasMedicalIssue:
			body = "I'm genuinely concerned to hear about the medical emergency in your family. Health and family come first. We can certainly adjust your repayment schedule to give you the space and peace of mind you need. I've formulated a plan with a generous grace period and lower installments to help. Shall we proceed?"
		case hasPressure:
			body = "We truly apologize if our reminders have added to your stress. Our aim is to be your partner in resolving this, not a source of pressure. We value your peace of mind and would like to offer a more relaxed repayment schedule with less frequent communication if that helps. Would you like to review a specialized relief plan?"
		default:
			body = "I'm very sorry to hear that you're going through such a challenging time. Please know that we are committed to finding a solution that works for you. Our priority is your well-being. I've developed a customized relief plan to ease your burden. Would you like to discuss the details?"
		}
	case analysis.StressLevel == models.StressModerate:
		body = "Thank you for sharing your situation with us. We understand that things can be difficult sometimes. To support you effectively, I've created some flexible options like grace periods and temporary EMI reductions. Would you like to explore these to see which one fits your current situation best?"
	case analysis.StressLevel == models.StressLow:
		body = "Thank you for the update. We appreciate your transparency. We've noted your message and are glad you're staying in touch. Is there anything specific we can do to make your upcoming payment even easier for you?"
	default:
		body = "Thank you for reaching out. We want to ensure your repayment journey is as smooth as possible. If you're encountering any obstacles, please let us know so we can offer tailored support and flexible options. How can we best assist you today?"
	}

	return greeting + "\n\n" + body
}

// PlanOfferText builds the response that carries the Plan A / Plan B pair.
func PlanOfferText(name string, analysis *models.CompositeAnalysis, pair models.PlanPair) string {
	var empathy string
	switch {
	case analysis.StressLevel == models.StressHigh || analysis.StressLevel == models.StressCritical:
		empathy = fmt.Sprintf("I'm truly sorry to hear about the %s you're facing, %s. We understand how difficult this is. ",
			strings.ToLower(analysis.PrimaryIssue), name)
	case analysis.StressLevel == models.StressModerate:
		empathy = fmt.Sprintf("I'm sorry to hear that you're dealing with %s, %s. Thank you for being honest with us. ",
			strings.ToLower(analysis.PrimaryIssue), name)
	case analysis.Breakdown.Message.ShowsWillingness:
		empathy = fmt.Sprintf("It's great to hear your commitment to resolving this, %s. ", name)
	default:
		empathy = fmt.Sprintf("I'm sorry to hear about the difficulties you're facing, %s. ", name)
	}

	return fmt.Sprintf(`%sOur priority is to support you through this. I've formulated two customized payment options to help ease your burden:

Plan A - Balanced Support
• Monthly EMI: ₹%d
• Extended Tenure: %d months
• Grace Period: %d days%s

Plan B - Comprehensive Relief
• Monthly EMI: ₹%d
• Extended Tenure: %d months
• Grace Period: %d days%s

Both options are designed to significantly reduce your monthly commitment. Do either of these help your current situation?`,
		empathy,
		pair.PlanA.SuggestedEMI, pair.PlanA.ExtendedTenure, pair.PlanA.GracePeriod, waiverLine(pair.PlanA),
		pair.PlanB.SuggestedEMI, pair.PlanB.ExtendedTenure, pair.PlanB.GracePeriod, waiverLine(pair.PlanB),
	)
}

func waiverLine(plan models.PlanTerms) string {
	if plan.InterestWaiver == 0 {
		return ""
	}
	return fmt.Sprintf("\n• Interest Waiver: %d%%", plan.InterestWaiver)
}

// AcceptanceText confirms an accepted plan back to the borrower.
func AcceptanceText(rec *models.EMIRecommendation) string {
	return fmt.Sprintf("PLAN ACCEPTED: I have officially confirmed your restructured payment plan.\n\n• New EMI: ₹%d\n• Extended Tenure: %d Months\n• Grace Period: %d Days\n\nPlease ensure payments are made on time according to these new terms. Your file has been updated.",
		rec.SuggestedEMI, rec.ExtendedTenure, rec.GracePeriod)
}

// DeclineText acknowledges a rejected plan.
func DeclineText() string {
	return "PLAN REJECTED: You have declined the proposed restructuring. We have prepared an alternative option with further relief for your review."
}

// ResolutionText closes out a settled conversation.
func ResolutionText(name string) string {
	return fmt.Sprintf("Thank you, %s. This conversation is now closed. If anything changes with your situation, please reach out and we'll be glad to help.", name)
}

// Insights renders the one-line summary stored on the behavioral snapshot.
func Insights(analysis *models.CompositeAnalysis) string {
	return fmt.Sprintf("Comprehensive analysis (Score: %d/100): %s detected. Stress level: %s.",
		analysis.CompositeScore, analysis.PrimaryIssue, analysis.StressLevel)
}
