// Package metrics reports pipeline counters to Datadog through statsd.
package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	. "github.com/Luismorlan/pagemux/utils/log"
)

const (
	namespace = "pagemux."

	WebhookEntryCounter      = "webhook.entry"
	WebhookEntryErrorCounter = "webhook.entry_error"
	ReconciledCounter        = "reconciler.reconciled"
	ReconcileFailureCounter  = "reconciler.failure"
	LazyPullCounter          = "reconciler.lazy_pull"
	RealtimeDeliveredCounter = "realtime.delivered"
	RealtimeDroppedCounter   = "realtime.dropped"
	NotificationCounter      = "notification.created"
	CredentialRefreshCounter = "credential.refresh"
)

// Reporter is safe to use as a nil pointer, which reports nothing.
type Reporter struct {
	inner statsd.ClientInterface
}

// New connects to the statsd agent at addr. An empty addr yields a reporter
// that drops everything, which is what tests and local runs use.
func New(addr string) (*Reporter, error) {
	if addr == "" {
		return NewNoop(), nil
	}
	client, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, err
	}
	return &Reporter{inner: client}, nil
}

func NewNoop() *Reporter {
	return &Reporter{inner: &statsd.NoOpClient{}}
}

func NewWithClient(client statsd.ClientInterface) *Reporter {
	return &Reporter{inner: client}
}

func (r *Reporter) Incr(name string, tags ...string) {
	r.Count(name, 1, tags...)
}

func (r *Reporter) Count(name string, value int64, tags ...string) {
	if r == nil || r.inner == nil || value == 0 {
		return
	}
	if err := r.inner.Count(name, value, tags, 1); err != nil {
		Log.WithField("metric", name).Infoln("cannot report metric")
	}
}

func (r *Reporter) Close() {
	if r == nil || r.inner == nil {
		return
	}
	r.inner.Close()
}
