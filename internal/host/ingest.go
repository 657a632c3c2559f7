// Package host is the receiving side of the handoff. Addresses arrive either
// through the launch query (cold start) or through a live event stream
// (warm start); both are decoded the same way and delivered once.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/tubestreak/internal/payload"
)

// State is the ingestion state of a host process.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingPayload State = "awaiting_payload"
	StateDelivered       State = "delivered"
)

// Source names the path an address arrived on.
type Source string

const (
	SourceCold Source = "cold"
	SourceWarm Source = "warm"
)

// LaunchQuery answers whether the process was launched for a pending
// address. It returns at most one address.
type LaunchQuery interface {
	LaunchAddress(ctx context.Context) (address string, ok bool, err error)
}

// LaunchQueryFunc adapts a function to LaunchQuery.
type LaunchQueryFunc func(ctx context.Context) (string, bool, error)

// LaunchAddress implements LaunchQuery.
func (f LaunchQueryFunc) LaunchAddress(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// StaticLaunch is a LaunchQuery that always answers with the same address.
// An empty address means the process was not launched for a share.
type StaticLaunch string

// LaunchAddress implements LaunchQuery.
func (s StaticLaunch) LaunchAddress(context.Context) (string, bool, error) {
	return string(s), s != "", nil
}

// DeliverFunc receives a decoded share. Label is empty when none was given.
type DeliverFunc func(url, label string)

// DeliveryState is a snapshot of what an Ingestor has delivered.
type DeliveryState struct {
	State       State     `json:"state"`
	Delivered   bool      `json:"delivered"`
	Deliveries  int       `json:"deliveries"`
	Duplicates  int       `json:"duplicates"`
	Rejected    int       `json:"rejected"`
	ColdChecked bool      `json:"cold_checked"`
	LastURL     string    `json:"last_url,omitempty"`
	LastSource  Source    `json:"last_source,omitempty"`
	LastAt      time.Time `json:"last_at,omitzero"`
}

// Options configures an Ingestor.
type Options struct {
	Codec   *payload.Codec
	OnShare DeliverFunc

	// Launch is the cold-path query; nil means no launch address.
	Launch LaunchQuery
	// Latch guards Launch. Share one Latch between all ingestors of a
	// process; nil gives the Ingestor a latch of its own.
	Latch *Latch
	// Dedup suppresses repeated URLs; nil uses DefaultDedupWindow.
	Dedup *Deduper
}

// Ingestor decodes addresses from both ingestion paths and delivers each
// share event to OnShare once.
type Ingestor struct {
	codec   *payload.Codec
	onShare DeliverFunc
	launch  LaunchQuery
	latch   *Latch
	dedup   *Deduper

	// mu serializes deliveries so OnShare is never entered twice at once.
	// OnShare must not call back into the Ingestor.
	mu    sync.Mutex
	state DeliveryState
}

// New creates an Ingestor.
func New(opts Options) *Ingestor {
	latch := opts.Latch
	if latch == nil {
		latch = NewLatch()
	}
	dedup := opts.Dedup
	if dedup == nil {
		dedup = NewDeduper(0)
	}
	onShare := opts.OnShare
	if onShare == nil {
		onShare = func(string, string) {}
	}
	return &Ingestor{
		codec:   opts.Codec,
		onShare: onShare,
		launch:  opts.Launch,
		latch:   latch,
		dedup:   dedup,
		state:   DeliveryState{State: StateIdle},
	}
}

// Status returns a snapshot of the delivery state.
func (i *Ingestor) Status() DeliveryState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// CheckLaunch evaluates the launch query if no ingestor sharing the latch
// has done so yet, and delivers its address. It returns true when a share
// was delivered. If ctx ends before the query answers the answer is
// discarded.
func (i *Ingestor) CheckLaunch(ctx context.Context) (bool, error) {
	if !i.latch.Claim() {
		logrus.Debug("launch query already evaluated in this process")
		return false, nil
	}
	i.mu.Lock()
	i.state.ColdChecked = true
	i.await()
	i.mu.Unlock()

	if i.launch == nil {
		return false, nil
	}
	address, ok, err := i.launch.LaunchAddress(ctx)
	if err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		logrus.Debug("host stopping; launch address discarded")
		return false, ctx.Err()
	}
	if !ok {
		return false, nil
	}
	return i.deliver(address, SourceCold), nil
}

// Receive delivers an address routed to the running process.
// It returns true when a share was delivered.
func (i *Ingestor) Receive(address string) bool {
	return i.deliver(address, SourceWarm)
}

// Listen delivers every address received on events until ctx is done or
// events is closed.
func (i *Ingestor) Listen(ctx context.Context, events <-chan string) error {
	i.mu.Lock()
	i.await()
	i.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case address, ok := <-events:
			if !ok {
				return nil
			}
			i.Receive(address)
		}
	}
}

// Run evaluates the launch query and listens on events concurrently until
// ctx is done. A failing launch query is logged, not returned.
func (i *Ingestor) Run(ctx context.Context, events <-chan string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := i.CheckLaunch(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Warn("launch query failed")
		}
		return nil
	})
	g.Go(func() error {
		return i.Listen(ctx, events)
	})
	return g.Wait()
}

// await moves an idle ingestor to AwaitingPayload. Callers hold i.mu.
func (i *Ingestor) await() {
	if i.state.State == StateIdle {
		i.state.State = StateAwaitingPayload
	}
}

func (i *Ingestor) deliver(address string, src Source) bool {
	log := logrus.WithField("source", src)

	p, err := i.codec.Parse(address)
	if err != nil {
		// May be an unrelated deep link; not an error for the host.
		log.WithError(err).Debug("ignoring address")
		i.mu.Lock()
		i.state.Rejected++
		i.mu.Unlock()
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.dedup.Admit(p.URL) {
		i.state.Duplicates++
		log.WithField("url", p.URL).Info("duplicate share suppressed")
		return false
	}

	i.state.State = StateDelivered
	i.state.Delivered = true
	i.state.Deliveries++
	i.state.LastURL = p.URL
	i.state.LastSource = src
	i.state.LastAt = time.Now()

	log.WithField("url", p.URL).Info("delivering share")
	i.onShare(p.URL, p.Label)
	return true
}
