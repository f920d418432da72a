package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailNotifier defines the interface for delivering OTP codes
type EmailNotifier interface {
	SendRegistrationOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error
	SendLoginOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error
}

// AWSSESNotifier sends OTP emails using AWS SES
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendRegistrationOTP delivers the verification code for a new account
func (s *AWSSESNotifier) SendRegistrationOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	subject := "Verify your account"
	intro := "Thank you for creating an account. Use the code below to verify your email address:"
	return s.sendOTPEmail(ctx, email, name, code, subject, intro, expiresIn)
}

// SendLoginOTP delivers a sign-in code for an existing account
func (s *AWSSESNotifier) SendLoginOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	subject := "Your sign-in code"
	intro := "Use the code below to finish signing in to your account:"
	return s.sendOTPEmail(ctx, email, name, code, subject, intro, expiresIn)
}

func (s *AWSSESNotifier) sendOTPEmail(ctx context.Context, email, name, code, subject, intro string, expiresIn time.Duration) error {
	minutes := int(expiresIn.Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background-color: #f8f9fa; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <div class="content">
            <p>Hi %s,</p>
            <p>%s</p>
            <div class="code">%s</div>
            <div class="warning">
                <strong>Security Notice:</strong> This code expires in %d minutes. Never share it with anyone.
            </div>
            <p><strong>Didn't request this code?</strong><br>
            If this wasn't you, you can ignore this email. Your account stays protected.</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, subject, name, intro, code, minutes)

	textBody := fmt.Sprintf(`%s

Hi %s,

%s

    %s

Security Notice: This code expires in %d minutes. Never share it with anyone.

Didn't request this code?
If this wasn't you, you can ignore this email. Your account stays protected.

This is an automated message. Please do not reply to this email.
`, subject, name, intro, code, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send OTP email via SES",
			slog.String("email", email),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("OTP email sent",
		slog.String("email", email),
		slog.String("message_id", *result.MessageId))

	return nil
}
