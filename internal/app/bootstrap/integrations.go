package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/ayurwell-scheduler/internal/audit"
	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/notify"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// BuildAuditTrail uses DynamoDB when AUDIT_TABLE is set.
func BuildAuditTrail(cfg *appconfig.Config, client *dynamodb.Client, logger *logging.Logger) audit.Trail {
	if cfg != nil && strings.TrimSpace(cfg.AuditTable) != "" && client != nil {
		return audit.NewDynamoTrail(client, cfg.AuditTable, logger)
	}
	return audit.NewMemoryTrail()
}

// BuildEmailSender picks the provider named by EMAIL_PROVIDER.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (notify.EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	provider := "stub"
	if cfg != nil && cfg.EmailProvider != "" {
		provider = cfg.EmailProvider
	}

	switch provider {
	case "stub":
		return notify.NewStubEmailSender(logger), nil
	case "ses":
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: ses client not configured")
		}
		return sender, nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", provider)
	}
}
