// Package notify delivers outbound e-mail notifications. Delivery is best
// effort: failures are logged and never reach the workflow caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sgc/internal/config"
	"sgc/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notificacao) error
}

// Log writes notifications to the logger instead of sending them.
type Log struct {
	Logger    *logrus.Logger
	Remetente string
}

func (l Log) Notify(_ context.Context, n domain.Notificacao) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.WithFields(logrus.Fields{
		"notificacao":  n.ID,
		"remetente":    l.Remetente,
		"destinatario": n.Destinatario,
	}).Info(n.Assunto)
	return nil
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []domain.Notificacao
}

func (r *Recorder) Notify(_ context.Context, n domain.Notificacao) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Sent() []domain.Notificacao {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notificacao(nil), r.sent...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// FromConfig picks the webhook notifier when a URL is configured and the
// log notifier otherwise.
func FromConfig(cfg *config.Config, logger *logrus.Logger) Notifier {
	if cfg == nil || cfg.Notificacoes.WebhookURL == "" {
		n := Log{Logger: logger}
		if cfg != nil {
			n.Remetente = cfg.Notificacoes.Remetente
		}
		return n
	}
	timeout := defaultTimeout
	if cfg.Notificacoes.TimeoutSeg > 0 {
		timeout = time.Duration(cfg.Notificacoes.TimeoutSeg) * time.Second
	}
	return NewWebhook(cfg.Notificacoes.WebhookURL, cfg.Notificacoes.Remetente, timeout)
}

// Dispatcher sends a batch of notifications after a transition commits.
// With Async set each batch runs in its own goroutine; Wait blocks until
// every pending batch is done.
type Dispatcher struct {
	Notifier Notifier
	Logger   *logrus.Logger
	Async    bool
	wg       sync.WaitGroup
}

func (d *Dispatcher) Dispatch(ns []domain.Notificacao) {
	if d == nil || d.Notifier == nil || len(ns) == 0 {
		return
	}
	if !d.Async {
		d.send(ns)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(ns)
	}()
}

func (d *Dispatcher) send(ns []domain.Notificacao) {
	for _, n := range ns {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		err := d.Notifier.Notify(ctx, n)
		cancel()
		if err != nil && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"notificacao":  n.ID,
				"destinatario": n.Destinatario,
			}).WithError(err).Warn("notificacao nao entregue")
		}
	}
}

func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
