package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Notification transports accepted in NOTIFY_TRANSPORT.
const (
	TransportLog      = "log"
	TransportMemory   = "memory"
	TransportSQS      = "sqs"
	TransportRabbitMQ = "rabbitmq"
	TransportOutbox   = "outbox"
)

const memoryQueueBuffer = 256

// NotifierDeps carries the clients a transport may need.
type NotifierDeps struct {
	Pool   *pgxpool.Pool
	SQS    *sqs.Client
	Logger *logging.Logger
}

// NotifierSetup is the result of BuildNotifier.
type NotifierSetup struct {
	Transport string
	Notifier  events.Notifier
	// Queue is set for the memory transport (consumed in-process) and for
	// the outbox transport (the relay target).
	Queue  events.Queue
	Outbox *events.OutboxStore
	Close  func() error
}

// BuildNotifier selects the event transport.
func BuildNotifier(cfg *appconfig.Config, deps NotifierDeps) (*NotifierSetup, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	transport := TransportLog
	if cfg != nil && strings.TrimSpace(cfg.NotifyTransport) != "" {
		transport = cfg.NotifyTransport
	}
	setup := &NotifierSetup{Transport: transport, Close: func() error { return nil }}

	switch transport {
	case TransportLog:
		setup.Notifier = events.NewLogNotifier(logger)
	case TransportMemory:
		queue := events.NewMemoryQueue(memoryQueueBuffer)
		setup.Queue = queue
		setup.Notifier = events.NewQueueNotifier(queue)
	case TransportSQS:
		queue, err := sqsQueue(cfg, deps.SQS)
		if err != nil {
			return nil, err
		}
		setup.Notifier = events.NewQueueNotifier(queue)
	case TransportRabbitMQ:
		if strings.TrimSpace(cfg.RabbitMQURL) == "" {
			return nil, fmt.Errorf("bootstrap: NOTIFY_TRANSPORT=rabbitmq requires RABBITMQ_URL")
		}
		rabbit, err := events.NewRabbitNotifier(cfg.RabbitMQURL, cfg.NotifyExchange)
		if err != nil {
			return nil, err
		}
		setup.Notifier = rabbit
		setup.Close = rabbit.Close
	case TransportOutbox:
		if deps.Pool == nil {
			return nil, fmt.Errorf("bootstrap: NOTIFY_TRANSPORT=outbox requires DATABASE_URL")
		}
		queue, err := sqsQueue(cfg, deps.SQS)
		if err != nil {
			return nil, err
		}
		outbox := events.NewOutboxStore(deps.Pool)
		setup.Outbox = outbox
		setup.Queue = queue
		setup.Notifier = outbox
	default:
		return nil, fmt.Errorf("bootstrap: unknown NOTIFY_TRANSPORT %q", transport)
	}

	logger.Info("notification transport selected", "transport", transport)
	return setup, nil
}

// Deliverer returns the outbox relay for the outbox transport, else nil.
func (s *NotifierSetup) Deliverer(cfg *appconfig.Config, logger *logging.Logger) *events.Deliverer {
	if s == nil || s.Outbox == nil || s.Queue == nil {
		return nil
	}
	d := events.NewDeliverer(s.Outbox, events.NewQueueRelay(s.Queue), logger)
	if cfg != nil {
		d = d.WithInterval(cfg.OutboxPollInterval)
	}
	return d
}

func sqsQueue(cfg *appconfig.Config, client *sqs.Client) (events.Queue, error) {
	if cfg == nil || strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: NOTIFY_QUEUE_URL is required for sqs delivery")
	}
	if client == nil {
		return nil, fmt.Errorf("bootstrap: sqs client not configured")
	}
	return events.NewSQSQueue(client, cfg.NotifyQueueURL), nil
}
