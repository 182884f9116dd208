package poller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProber struct {
	failures int
	calls    int
}

func (f *fakeProber) Me(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func TestWaitUntilReadyOutlastsPlatformOutage(t *testing.T) {
	prober := &fakeProber{failures: 2}
	p := &Poller{log: zap.NewNop(), client: prober}

	err := p.waitUntilReady(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, prober.calls, "keeps probing until the platform answers")
}

func TestWaitUntilReadyStopsOnCancel(t *testing.T) {
	prober := &fakeProber{failures: 1 << 30}
	p := &Poller{log: zap.NewNop(), client: prober}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- p.waitUntilReady(ctx) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waitUntilReady did not return after cancellation")
	}
}
