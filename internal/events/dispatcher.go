package events

import (
	"context"
	"time"

	"github.com/wolfman30/ayurwell-scheduler/internal/observability/metrics"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Notifier hands an event to a transport.
type Notifier interface {
	Notify(ctx context.Context, evt AppointmentEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt AppointmentEvent) error

func (f NotifierFunc) Notify(ctx context.Context, evt AppointmentEvent) error { return f(ctx, evt) }

// LogNotifier writes events to the structured log. It is the default
// transport when nothing downstream is configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, evt AppointmentEvent) error {
	n.logger.Info("appointment event",
		"event_id", evt.EventID,
		"type", evt.Type,
		"appointment_id", evt.Appointment.ID,
		"status", evt.Appointment.Status,
	)
	return nil
}

// Dispatcher emits events on behalf of the core.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) DispatcherOption {
	return func(disp *Dispatcher) { disp.metrics = m }
}

// NewDispatcher wraps notifier. A nil notifier logs events.
func NewDispatcher(notifier Notifier, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	d := &Dispatcher{notifier: notifier, timeout: 3 * time.Second, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit delivers evt at most once. The caller's cancellation does not cut
// delivery short; the dispatcher's own timeout does. Failures are logged
// and counted, never returned.
func (d *Dispatcher) Emit(ctx context.Context, evt AppointmentEvent) {
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, evt); err != nil {
		d.logger.Warn("appointment event not delivered",
			"event_id", evt.EventID,
			"type", evt.Type,
			"error", err,
		)
		d.metrics.ObserveNotification(string(evt.Type), "failed")
		return
	}
	d.metrics.ObserveNotification(string(evt.Type), "sent")
}
