// Package notify dispatches user-facing emails. Delivery itself is external;
// the default implementation only logs the link.
package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

type Message struct {
	To   string
	Name string
	URL  string
}

type Notifier interface {
	SendVerificationEmail(ctx context.Context, m Message) error
	SendPasswordResetEmail(ctx context.Context, m Message) error
}

// LogNotifier writes every message to the log instead of sending it.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notify")}
}

func (n *LogNotifier) SendVerificationEmail(ctx context.Context, m Message) error {
	n.logger.Info(ctx, "verification email", "to", m.To, "url", m.URL)
	return nil
}

func (n *LogNotifier) SendPasswordResetEmail(ctx context.Context, m Message) error {
	n.logger.Info(ctx, "password reset email", "to", m.To, "url", m.URL)
	return nil
}

// Async runs the wrapped Notifier in background goroutines. Send methods
// always return nil; delivery errors are logged.
type Async struct {
	next   Notifier
	logger logging.Logger
	wg     sync.WaitGroup
}

func NewAsync(next Notifier, l logging.Logger) *Async {
	return &Async{next: next, logger: l.With("module", "notify")}
}

func (a *Async) SendVerificationEmail(ctx context.Context, m Message) error {
	a.dispatch(ctx, "verification", m, a.next.SendVerificationEmail)
	return nil
}

func (a *Async) SendPasswordResetEmail(ctx context.Context, m Message) error {
	a.dispatch(ctx, "password reset", m, a.next.SendPasswordResetEmail)
	return nil
}

// Wait blocks until every dispatched message has been handled.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) dispatch(ctx context.Context, kind string, m Message, send func(context.Context, Message) error) {
	// detached from the request so a finished response does not cancel delivery
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := send(ctx, m); err != nil {
			a.logger.Error(ctx, "email dispatch failed", "kind", kind, "to", m.To, "error", err)
		}
	}()
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*Async)(nil)
)
