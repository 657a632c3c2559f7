// Package extension is the share-extension side of the handoff: it turns the
// shared attachments into an address, hands the address to the host and
// completes the extension request.
package extension

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/payload"
	"github.com/hpungsan/tubestreak/internal/share"
)

// BackupWriter persists the dispatched address where the host could find it.
type BackupWriter interface {
	Save(ctx context.Context, address, eventID string, at time.Time) error
}

// Completer ends the extension request. It is called exactly once per Handle.
type Completer interface {
	CompleteRequest(result Result)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(Result)

// CompleteRequest implements Completer.
func (f CompleterFunc) CompleteRequest(r Result) { f(r) }

// Result describes what happened to one share event.
type Result struct {
	EventID    string           `json:"event_id,omitempty"`
	Payload    *payload.Payload `json:"payload,omitempty"`
	Address    string           `json:"address,omitempty"`
	BackedUp   bool             `json:"backed_up"`
	Dispatched bool             `json:"dispatched"`
	// Reason is the error code when nothing was dispatched.
	Reason errors.ErrorCode `json:"reason,omitempty"`
}

// Extension runs the extension side of one share event.
type Extension struct {
	Codec       *payload.Codec
	Opener      Opener
	Backup      BackupWriter // optional
	Completer   Completer    // optional
	GracePeriod time.Duration

	// Now is used for backup timestamps; defaults to time.Now.
	Now func() time.Time
}

// Handle negotiates the attachments, dispatches the resulting address and
// completes the request.
//
// Unsupported content and dispatch failures are not returned as errors: the
// request is completed with an empty or undispatched result, since there is
// no UI left to report them to. Only context cancellation is returned.
// The completer runs exactly once on every path.
func (e *Extension) Handle(ctx context.Context, attachments []share.Attachment, label string) (res Result, err error) {
	req := &request{completer: e.Completer}
	defer func() { req.complete(res) }()

	p, err := share.Negotiate(ctx, attachments, label)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedContent) {
			logrus.WithField("candidates", len(attachments)).Info("nothing to share: no attachment contains a URL")
			return Result{Reason: errors.ErrUnsupportedContent}, nil
		}
		return Result{}, err
	}

	res = e.Dispatch(ctx, *p)

	// Give the OS time to start switching to the host before the extension
	// is reclaimed. This applies whether or not the open reported success.
	if e.GracePeriod > 0 {
		timer := time.NewTimer(e.GracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return res, nil
}

// Dispatch writes the backup record and opens the address for p.
// Failures of either step are logged and reflected in the result.
func (e *Extension) Dispatch(ctx context.Context, p payload.Payload) Result {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	res := Result{
		EventID: newEventID(now()),
		Payload: &p,
		Address: e.Codec.Encode(p),
	}
	log := logrus.WithFields(logrus.Fields{
		"event_id": res.EventID,
		"url":      p.URL,
	})

	// The backup goes first so it exists even if the open below takes the
	// process down with it.
	if e.Backup != nil {
		if err := e.Backup.Save(ctx, res.Address, res.EventID, now()); err != nil {
			log.WithError(err).Warn("failed to write backup record")
		} else {
			res.BackedUp = true
		}
	}

	if e.Opener == nil {
		res.Reason = errors.ErrDispatchTargetNotFound
		log.Warn("no opener configured; address not dispatched")
		return res
	}
	if err := e.Opener.Open(ctx, res.Address); err != nil {
		if sErr, ok := err.(*errors.ShareError); ok {
			res.Reason = sErr.Code
		} else {
			res.Reason = errors.ErrDispatchTargetNotFound
		}
		log.WithError(err).Warn("failed to dispatch share address")
		return res
	}

	res.Dispatched = true
	log.WithField("address", res.Address).Info("dispatched share address")
	return res
}

// request guards the completer so it runs once.
type request struct {
	completer Completer
	once      sync.Once
}

func (r *request) complete(res Result) {
	r.once.Do(func() {
		if r.completer != nil {
			r.completer.CompleteRequest(res)
		}
	})
}

// newEventID generates a ULID identifying one share event.
func newEventID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
