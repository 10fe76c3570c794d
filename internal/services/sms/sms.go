// Package sms delivers borrower-facing text messages through Amazon SNS.
package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	appConfig "repayment-negotiation-engine/internal/config"
	"repayment-negotiation-engine/internal/utils"
)

// Service handles SMS delivery.
type Service struct {
	client   *sns.Client
	senderID string
}

// NewService creates a new SMS service.
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
		client:   sns.NewFromConfig(cfg),
		senderID: appCfg.SNSSenderID,
	}, nil
}

// Send publishes a text message directly to a phone number.
func (s *Service) Send(ctx context.Context, phoneNumber, body string) error {
	phone := NormalizePhone(phoneNumber)
	if phone == "" {
		return fmt.Errorf("invalid phone number %q", phoneNumber)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to send SMS",
			zap.String("phone", phone),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	utils.GetLogger().Info("SMS sent",
		zap.String("phone", phone),
		zap.String("messageId", aws.ToString(result.MessageId)),
	)

	return nil
}

// NormalizePhone converts a phone number to E.164 form, assuming Indian
// numbers when no country code is present. Returns "" if the number is
// unusable.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	n := digits.String()
	switch {
	case strings.HasPrefix(phone, "+") && len(n) >= 11:
		return "+" + n
	case len(n) == 10:
		return "+91" + n
	case len(n) == 12 && strings.HasPrefix(n, "91"):
		return "+" + n
	default:
		return ""
	}
}
