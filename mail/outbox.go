package mail

import (
	"context"
	"sync"
)

// Sent is one message captured by [Outbox].
type Sent struct {
	To      string
	Subject string
	Body    string
}

// Outbox records messages in memory. Setting Fail makes every Send return
// that error without recording.
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
	Fail error
}

func (o *Outbox) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return o.Fail
	}
	if !validAddress(to) {
		return ErrInvalidRecipient
	}
	o.sent = append(o.sent, Sent{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Sent, len(o.sent))
	copy(out, o.sent)
	return out
}

// Last returns the most recent message to addr.
func (o *Outbox) Last(addr string) (Sent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == addr {
			return o.sent[i], true
		}
	}
	return Sent{}, false
}

// SetFail swaps the failure injected into subsequent sends.
func (o *Outbox) SetFail(err error) {
	o.mu.Lock()
	o.Fail = err
	o.mu.Unlock()
}
