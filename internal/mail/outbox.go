package mail

import (
	"context"
	"log/slog"
	"sync"
)

// Outbox keeps sent messages in memory instead of delivering them. Used in development (no
// MAIL_API_URL) and tests.
type Outbox struct {
	mu     sync.Mutex
	from   Senders
	msgs   []Message
	kinds  []Kind
	logger *slog.Logger
	err    error
}

// NewOutbox returns an empty outbox. logger may be nil.
func NewOutbox(from Senders, logger *slog.Logger) *Outbox {
	return &Outbox{from: from, logger: logger}
}

// FailWith makes every following send return err; nil restores normal behavior.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *Outbox) SendVerificationLink(ctx context.Context, to, link string) error {
	return o.put(KindVerification, o.from.render(KindVerification, to, link))
}

func (o *Outbox) SendResetLink(ctx context.Context, to, link string) error {
	return o.put(KindReset, o.from.render(KindReset, to, link))
}

func (o *Outbox) SendPasswordChangedNotice(ctx context.Context, to string) error {
	return o.put(KindPasswordChanged, o.from.render(KindPasswordChanged, to, ""))
}

func (o *Outbox) put(kind Kind, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	o.kinds = append(o.kinds, kind)
	if o.logger != nil {
		o.logger.Info("mail queued in outbox", "kind", kind, "to", msg.To)
	}
	return nil
}

// Messages returns a copy of all messages of kind, oldest first. An empty kind returns all.
func (o *Outbox) Messages(kind Kind) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Message
	for i, m := range o.msgs {
		if kind == "" || o.kinds[i] == kind {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the newest message of kind sent to to.
func (o *Outbox) Last(kind Kind, to string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.kinds[i] == kind && o.msgs[i].To == to {
			return o.msgs[i], true
		}
	}
	return Message{}, false
}
