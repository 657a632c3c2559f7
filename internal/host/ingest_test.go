package host

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tubestreak/internal/payload"
)

const legDay = "tubestreak://share?url=https%3A%2F%2Fyoutube.com%2Fwatch%3Fv%3DABC%26si%3DXYZ&name=Leg%20Day"

type delivery struct {
	url, label string
}

type sink struct {
	mu  sync.Mutex
	got []delivery
}

func (s *sink) onShare(url, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivery{url, label})
}

func (s *sink) deliveries() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.got...)
}

func newTestIngestor(t *testing.T, opts Options) (*Ingestor, *sink) {
	t.Helper()
	codec, err := payload.NewCodec("tubestreak")
	require.NoError(t, err)
	s := &sink{}
	opts.Codec = codec
	opts.OnShare = s.onShare
	return New(opts), s
}

// countingLaunch counts evaluations of the launch query.
type countingLaunch struct {
	mu      sync.Mutex
	calls   int
	address string
}

func (c *countingLaunch) LaunchAddress(context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.address, c.address != "", nil
}

func TestCheckLaunch_DeliversExactlyOnce(t *testing.T) {
	launch := &countingLaunch{address: legDay}
	ing, s := newTestIngestor(t, Options{Launch: launch})

	delivered, err := ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	assert.True(t, delivered)

	// A repeated check answers the same way; it must not deliver again.
	delivered, err = ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	assert.False(t, delivered)

	assert.Equal(t, []delivery{{"https://youtube.com/watch?v=ABC&si=XYZ", "Leg Day"}}, s.deliveries())
	assert.Equal(t, 1, launch.calls, "launch query must be evaluated once")

	st := ing.Status()
	assert.Equal(t, StateDelivered, st.State)
	assert.True(t, st.Delivered)
	assert.True(t, st.ColdChecked)
	assert.Equal(t, SourceCold, st.LastSource)
}

func TestCheckLaunch_SharedLatchAcrossIngestors(t *testing.T) {
	latch := NewLatch()
	launch := &countingLaunch{address: legDay}

	first, s1 := newTestIngestor(t, Options{Launch: launch, Latch: latch})
	second, s2 := newTestIngestor(t, Options{Launch: launch, Latch: latch})

	_, err := first.CheckLaunch(context.Background())
	require.NoError(t, err)
	_, err = second.CheckLaunch(context.Background())
	require.NoError(t, err)

	assert.Len(t, s1.deliveries(), 1)
	assert.Empty(t, s2.deliveries())
	assert.Equal(t, 1, launch.calls)
	assert.True(t, latch.Claimed())
}

func TestCheckLaunch_ConcurrentCallers(t *testing.T) {
	latch := NewLatch()
	launch := &countingLaunch{address: legDay}
	ing, s := newTestIngestor(t, Options{Launch: launch, Latch: latch})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ing.CheckLaunch(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, s.deliveries(), 1)
	assert.Equal(t, 1, launch.calls)
}

func TestCheckLaunch_NoLaunchAddress(t *testing.T) {
	ing, s := newTestIngestor(t, Options{Launch: StaticLaunch("")})

	delivered, err := ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Empty(t, s.deliveries())

	st := ing.Status()
	assert.Equal(t, StateAwaitingPayload, st.State)
	assert.False(t, st.Delivered)
}

func TestCheckLaunch_NilQuery(t *testing.T) {
	ing, s := newTestIngestor(t, Options{})

	delivered, err := ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Empty(t, s.deliveries())
}

func TestCheckLaunch_QueryError(t *testing.T) {
	ing, s := newTestIngestor(t, Options{
		Launch: LaunchQueryFunc(func(context.Context) (string, bool, error) {
			return "", false, fmt.Errorf("os refused")
		}),
	})

	_, err := ing.CheckLaunch(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.deliveries())
}

func TestCheckLaunch_CancelledDiscardsAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ing, s := newTestIngestor(t, Options{
		Launch: LaunchQueryFunc(func(context.Context) (string, bool, error) {
			// The host is torn down while the OS is answering.
			cancel()
			return legDay, true, nil
		}),
	})

	delivered, err := ing.CheckLaunch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, delivered)
	assert.Empty(t, s.deliveries())
}

func TestReceive_MalformedAddressIgnored(t *testing.T) {
	ing, s := newTestIngestor(t, Options{})

	tests := []string{
		"tubestreak://other?foo=bar",
		"tubestreak://share?name=x",
		"otherapp://share?url=https%3A%2F%2Fexample.com",
		"",
	}
	for _, address := range tests {
		assert.False(t, ing.Receive(address), address)
	}
	assert.Empty(t, s.deliveries())
	assert.Equal(t, len(tests), ing.Status().Rejected)
	assert.Equal(t, StateIdle, ing.Status().State)
}

func TestReceive_WarmDeliveriesForDistinctURLs(t *testing.T) {
	ing, s := newTestIngestor(t, Options{})

	assert.True(t, ing.Receive("tubestreak://share?url=https%3A%2F%2Fa.example%2F"))
	assert.True(t, ing.Receive("tubestreak://share?url=https%3A%2F%2Fb.example%2F&name=B"))

	assert.Equal(t, []delivery{
		{"https://a.example/", ""},
		{"https://b.example/", "B"},
	}, s.deliveries())
	assert.Equal(t, 2, ing.Status().Deliveries)
}

func TestColdThenWarmSameURL_DeliveredOnce(t *testing.T) {
	ing, s := newTestIngestor(t, Options{Launch: StaticLaunch(legDay)})

	_, err := ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	// Late warm event for the same share.
	assert.False(t, ing.Receive(legDay))

	assert.Len(t, s.deliveries(), 1)
	st := ing.Status()
	assert.Equal(t, 1, st.Deliveries)
	assert.Equal(t, 1, st.Duplicates)
}

func TestWarmThenColdSameURL_DeliveredOnce(t *testing.T) {
	ing, s := newTestIngestor(t, Options{Launch: StaticLaunch(legDay)})

	assert.True(t, ing.Receive(legDay))
	delivered, err := ing.CheckLaunch(context.Background())
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Len(t, s.deliveries(), 1)
}

func TestDedup_LabelDoesNotChangeKey(t *testing.T) {
	ing, s := newTestIngestor(t, Options{})

	assert.True(t, ing.Receive("tubestreak://share?url=https%3A%2F%2Fa.example%2F&name=one"))
	assert.False(t, ing.Receive("tubestreak://share?url=https%3A%2F%2Fa.example%2F&name=two"))
	assert.Len(t, s.deliveries(), 1)
}

func TestDedup_WindowExpires(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	dedup := NewDeduper(10 * time.Second)
	dedup.now = func() time.Time { return now }

	ing, s := newTestIngestor(t, Options{Dedup: dedup})
	address := "tubestreak://share?url=https%3A%2F%2Fa.example%2F"

	assert.True(t, ing.Receive(address))
	now = now.Add(5 * time.Second)
	assert.False(t, ing.Receive(address))
	now = now.Add(10 * time.Second)
	assert.True(t, ing.Receive(address), "a later share of the same URL is a new event")

	assert.Len(t, s.deliveries(), 2)
}

func TestRun_ColdAndWarm(t *testing.T) {
	ing, s := newTestIngestor(t, Options{Launch: StaticLaunch(legDay)})

	events := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, events) }()

	events <- legDay // duplicate of the launch address
	events <- "tubestreak://share?url=https%3A%2F%2Fb.example%2F"
	events <- "tubestreak://other?foo=bar"

	require.Eventually(t, func() bool {
		st := ing.Status()
		return st.ColdChecked && st.Rejected == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []delivery{
		{"https://youtube.com/watch?v=ABC&si=XYZ", "Leg Day"},
		{"https://b.example/", ""},
	}, s.deliveries())
}

func TestListen_ClosedChannel(t *testing.T) {
	ing, s := newTestIngestor(t, Options{})

	events := make(chan string, 1)
	events <- "tubestreak://share?url=https%3A%2F%2Fa.example%2F"
	close(events)

	require.NoError(t, ing.Listen(context.Background(), events))
	assert.Len(t, s.deliveries(), 1)
}

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Claimed())
	assert.True(t, l.Claim())
	assert.False(t, l.Claim())
	assert.True(t, l.Claimed())
}

func TestNewDeduper_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultDedupWindow, NewDeduper(0).Window())
	assert.Equal(t, time.Minute, NewDeduper(time.Minute).Window())
}
