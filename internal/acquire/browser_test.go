package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/browser"
	"github.com/sells-group/catalog-cli/internal/resilience"
)

// scriptedInstance returns queued render outcomes in order.
type scriptedInstance struct {
	outcomes []renderOutcome
	call     int
}

type renderOutcome struct {
	dom string
	err error
}

func (s *scriptedInstance) Render(_ context.Context, _ string) (string, error) {
	if s.call >= len(s.outcomes) {
		return "", errors.New("no more scripted outcomes")
	}
	o := s.outcomes[s.call]
	s.call++
	return o.dom, o.err
}

func (s *scriptedInstance) Close() error { return nil }

// fakeLeaser hands out handles over a single scripted instance.
type fakeLeaser struct {
	inst       browser.Instance
	acquireErr error
	acquired   int
	released   int
	discarded  int
}

func (f *fakeLeaser) Acquire(_ context.Context) (*browser.Handle, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return &browser.Handle{Instance: f.inst}, nil
}

func (f *fakeLeaser) Release(_ *browser.Handle) { f.released++ }

func (f *fakeLeaser) Discard(_ *browser.Handle) { f.discarded++ }

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestBrowserFetcher_Success(t *testing.T) {
	leaser := &fakeLeaser{inst: &scriptedInstance{
		outcomes: []renderOutcome{{dom: "<html><body>rendered</body></html>"}},
	}}

	f := NewBrowserFetcher(leaser, fastRetry(3))
	result, err := f.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Contains(t, result.HTML, "rendered")
	assert.False(t, result.Partial)
	assert.Equal(t, 1, leaser.released, "instance must be returned to the pool")
	assert.Equal(t, 0, leaser.discarded)
}

func TestBrowserFetcher_RetriesThenSucceeds(t *testing.T) {
	leaser := &fakeLeaser{inst: &scriptedInstance{
		outcomes: []renderOutcome{
			{err: errors.New("navigation timeout")},
			{err: errors.New("navigation timeout")},
			{dom: "<html>third time</html>"},
		},
	}}

	f := NewBrowserFetcher(leaser, fastRetry(3))
	result, err := f.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Contains(t, result.HTML, "third time")
	assert.Equal(t, 3, leaser.acquired)
	assert.Equal(t, 2, leaser.discarded, "failed instances are discarded")
}

func TestBrowserFetcher_ExhaustsRetries(t *testing.T) {
	leaser := &fakeLeaser{inst: &scriptedInstance{
		outcomes: []renderOutcome{
			{err: errors.New("crash")},
			{err: errors.New("crash")},
			{err: errors.New("crash")},
		},
	}}

	f := NewBrowserFetcher(leaser, fastRetry(3))
	_, err := f.Fetch(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Equal(t, 3, leaser.discarded)
	assert.Equal(t, 0, leaser.released)
}

func TestBrowserFetcher_PartialDOMPreferredOverFailure(t *testing.T) {
	leaser := &fakeLeaser{inst: &scriptedInstance{
		outcomes: []renderOutcome{
			{dom: "<html><body>half a page</body>", err: errors.New("navigation aborted")},
		},
	}}

	f := NewBrowserFetcher(leaser, fastRetry(3))
	result, err := f.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Contains(t, result.HTML, "half a page")
	assert.Equal(t, 1, leaser.released, "partial content still releases the instance")
}

func TestBrowserFetcher_AcquireFailurePropagates(t *testing.T) {
	leaser := &fakeLeaser{acquireErr: errors.New("pool closed")}

	f := NewBrowserFetcher(leaser, fastRetry(1))
	_, err := f.Fetch(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire instance")
}

func TestBrowserFetcher_EmptyDOMIsError(t *testing.T) {
	leaser := &fakeLeaser{inst: &scriptedInstance{
		outcomes: []renderOutcome{{dom: "   "}},
	}}

	f := NewBrowserFetcher(leaser, fastRetry(1))
	_, err := f.Fetch(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
