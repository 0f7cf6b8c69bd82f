package mailer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the regional SES endpoint (for testing).
	Endpoint string
}

// sesAPI is the subset of *ses.Client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends through Amazon SES. SES has no delayed delivery, so messages
// with a SendAt are rejected with ErrSchedulingUnsupported.
type SES struct {
	client     sesAPI
	configured bool
}

// NewSES creates an SES mailer with static credentials.
func NewSES(cfg SESConfig) *SES {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}
	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RetryMaxAttempts = 1
	})
	return &SES{
		client:     client,
		configured: cfg.Region != "" && cfg.AccessKeyID != "" && cfg.SecretAccessKey != "",
	}
}

func (s *SES) Name() string     { return ProviderSES }
func (s *SES) Configured() bool { return s.configured }

func (s *SES) Send(ctx context.Context, msg Message) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if !msg.SendAt.IsZero() {
		return ErrSchedulingUnsupported
	}

	input := &ses.SendEmailInput{
		Source: aws.String(msg.From.String()),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To.String()},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(msg.HTML),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return eris.Wrap(err, "ses: send email")
	}
	zap.L().Debug("ses: message accepted",
		zap.String("to", msg.To.Email),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
