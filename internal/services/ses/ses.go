// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	appConfig "repayment-negotiation-engine/internal/config"
	"repayment-negotiation-engine/internal/models"
	"repayment-negotiation-engine/internal/utils"
)

// Service handles SES email operations
type Service struct {
	client    *ses.Client
	fromEmail string
	toEmail   string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	appCfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	return &Service{
		client:    ses.NewFromConfig(cfg),
		fromEmail: appCfg.SESSenderEmail,
		toEmail:   appCfg.EscalationEmail,
	}, nil
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	utils.GetLogger().Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", aws.ToString(result.MessageId)),
	)

	return &SendEmailResult{
		MessageID: aws.ToString(result.MessageId),
		SentAt:    time.Now().UTC(),
	}, nil
}

const escalationTemplate = `
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2 style="color: #c0392b;">Critical Risk Borrower Escalation</h2>
	<p>A borrower has been flagged as critical risk by the repayment negotiation engine.</p>
	<table border="0" cellpadding="6">
		<tr><td><b>Borrower</b></td><td>{{.CustomerName}} (Loan {{.LoanID}})</td></tr>
		<tr><td><b>Phone</b></td><td>{{.PhoneNumber}}</td></tr>
		<tr><td><b>Outstanding</b></td><td>₹{{printf "%.2f" .OutstandingBalance}}</td></tr>
		<tr><td><b>Days past due</b></td><td>{{.OverdueDays}}</td></tr>
		<tr><td><b>Distress score</b></td><td>{{.CompositeScore}}/100</td></tr>
		<tr><td><b>Primary issue</b></td><td>{{.PrimaryIssue}}</td></tr>
		<tr><td><b>Willingness to pay</b></td><td>{{.Willingness}}</td></tr>
	</table>
	<p>Manual intervention is recommended.</p>
</body>
</html>`

type escalationData struct {
	CustomerName       string
	LoanID             string
	PhoneNumber        string
	OutstandingBalance float64
	OverdueDays        int
	CompositeScore     int
	PrimaryIssue       string
	Willingness        string
}

// NotifyCritical emails the escalation inbox about a critical-risk borrower.
func (s *Service) NotifyCritical(ctx context.Context, borrower *models.Borrower, analysis *models.CompositeAnalysis) error {
	if s.toEmail == "" {
		return nil
	}

	tmpl, err := template.New("escalation").Parse(escalationTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse escalation template: %w", err)
	}

	var body bytes.Buffer
	err = tmpl.Execute(&body, escalationData{
		CustomerName:       borrower.CustomerName,
		LoanID:             borrower.LoanID,
		PhoneNumber:        borrower.PhoneNumber,
		OutstandingBalance: borrower.OutstandingBalance,
		OverdueDays:        borrower.OverdueDays,
		CompositeScore:     analysis.CompositeScore,
		PrimaryIssue:       analysis.PrimaryIssue,
		Willingness:        analysis.WillingnessToPay,
	})
	if err != nil {
		return fmt.Errorf("failed to render escalation email: %w", err)
	}

	_, err = s.SendEmail(ctx, EmailParams{
		To:      s.toEmail,
		Subject: fmt.Sprintf("Critical risk: %s (loan %s)", borrower.CustomerName, borrower.LoanID),
		HTMLBody: body.String(),
		TextBody: fmt.Sprintf("Borrower %s (loan %s) flagged critical. Score %d/100, issue: %s, %d days past due.",
			borrower.CustomerName, borrower.LoanID, analysis.CompositeScore, analysis.PrimaryIssue, borrower.OverdueDays),
	})
	return err
}
