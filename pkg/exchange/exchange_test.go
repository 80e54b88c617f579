package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/log"
	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct{ events []log.Event }

func (r *eventRecorder) Log(e log.Event) { r.events = append(r.events, e) }

func newDownloader(t *testing.T, backend *node.MemoryBackend) *Downloader {
	t.Helper()
	dl, err := NewDownloader(Config{Reader: backend})
	require.NoError(t, err)
	return dl
}

func TestNewCoordinatorRequiresIO(t *testing.T) {
	_, err := NewDownloader(Config{})
	assert.ErrorIs(t, err, ErrNoReader)

	_, err = NewUploader(Config{Reader: node.NewMemoryBackend()})
	assert.ErrorIs(t, err, ErrNoWriter)
}

func TestDownloadScenario(t *testing.T) {
	a, b := node.NewPoint("A"), node.NewPoint("B")
	backend := node.NewMemoryBackend()
	backend.Set(a, 10)
	backend.Set(b, 20)

	st := store.New()
	st.Set(a, 1)
	st.Set(b, 2)

	dl, err := NewDownloader(Config{Reader: backend, Store: st})
	require.NoError(t, err)
	require.NoError(t, dl.AddNodes(a, b))

	require.NoError(t, dl.Download(context.Background()))

	got, _ := st.Get(a)
	assert.Equal(t, 10, got)
	got, _ = st.Get(b)
	assert.Equal(t, 20, got)

	view := dl.DataView("")
	assert.Equal(t, map[string]any{"A": 10, "B": 20}, view.Items())
	assert.Equal(t, []string{"A", "B"}, view.Keys())

	info := dl.Info()
	assert.NoError(t, info.Err)
	assert.Equal(t, 2, info.NodeCount)
}

func TestConnectionTreeAggregation(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	a, b, c, d := node.NewPoint("a"), node.NewPoint("b"), node.NewPoint("c"), node.NewPoint("d")

	c1, err := dl.NewConnection()
	require.NoError(t, err)
	c2, err := c1.NewConnection()
	require.NoError(t, err)
	c3, err := dl.NewConnection()
	require.NoError(t, err)

	require.NoError(t, dl.AddNode(d))
	require.NoError(t, c1.AddNode(a))
	require.NoError(t, c2.AddNodes(b, c))
	require.NoError(t, c3.AddNode(a))

	assert.Equal(t, node.NewSet(b, c), c2.Nodes())
	assert.Equal(t, node.NewSet(a, b, c), c1.Nodes())
	assert.Equal(t, node.NewSet(a), c3.Nodes())
	assert.Equal(t, node.NewSet(a, b, c, d), dl.Nodes())

	require.NoError(t, c2.RemoveNode(c))
	assert.Equal(t, node.NewSet(a, b), c1.Nodes())
	assert.Equal(t, node.NewSet(a, b, d), dl.Nodes())

	require.NoError(t, c1.RemoveNode(a))
	assert.Equal(t, node.NewSet(b), c1.Nodes())
	assert.True(t, dl.Nodes().Has(a), "c3 still subscribes to a")
}

func TestConnectionDataLinkRequirementsAggregate(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	a := node.NewPoint("a")
	conn, err := dl.NewConnection()
	require.NoError(t, err)

	var v any
	link := node.NewFieldLink().Bind(a, nil, func(x any) { v = x })
	require.NoError(t, conn.AddDataLink(link))
	assert.True(t, dl.Nodes().Has(a))
	assert.Nil(t, v)

	require.NoError(t, conn.RemoveDataLink(link))
	assert.False(t, dl.Nodes().Has(a))
}

func TestDisconnectSharedNode(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	a := node.NewPoint("A")

	c1, err := dl.NewConnection()
	require.NoError(t, err)
	c2, err := dl.NewConnection()
	require.NoError(t, err)
	require.NoError(t, c1.AddNode(a))
	require.NoError(t, c2.AddNode(a))

	require.NoError(t, c1.Disconnect())

	assert.False(t, c1.IsConnected())
	assert.True(t, c2.IsConnected())
	assert.True(t, c2.Nodes().Has(a))
	assert.True(t, dl.Nodes().Has(a))
}

func TestDisconnectCascades(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	a, b, c := node.NewPoint("a"), node.NewPoint("b"), node.NewPoint("c")

	parent, _ := dl.NewConnection()
	child, _ := parent.NewConnection()
	grandchild, _ := child.NewConnection()
	sibling, _ := dl.NewConnection()
	require.NoError(t, parent.AddNode(a))
	require.NoError(t, grandchild.AddNode(b))
	require.NoError(t, sibling.AddNode(c))
	require.Equal(t, 5, dl.Registered())

	require.NoError(t, parent.Disconnect())

	assert.False(t, parent.IsConnected())
	assert.False(t, child.IsConnected())
	assert.False(t, grandchild.IsConnected())
	assert.True(t, sibling.IsConnected())
	assert.True(t, dl.IsConnected())
	assert.Equal(t, 2, dl.Registered(), "root and sibling remain")
	assert.Equal(t, node.NewSet(c), dl.Nodes())
	assert.Equal(t, 0, grandchild.Nodes().Len())

	_, ok := grandchild.Token()
	assert.False(t, ok)

	assert.ErrorIs(t, grandchild.AddNode(a), ErrDisconnected)
	assert.ErrorIs(t, grandchild.Download(context.Background()), ErrDisconnected)
	_, err := grandchild.NewConnection()
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = child.AddCallback(func() error { return nil }, 0)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestDisconnectIdempotent(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	a := node.NewPoint("a")
	conn, _ := dl.NewConnection()
	require.NoError(t, conn.AddNode(a))

	require.NoError(t, conn.Disconnect())
	registered, nodes := dl.Registered(), dl.Nodes()

	require.NoError(t, conn.Disconnect())
	assert.Equal(t, registered, dl.Registered())
	assert.Equal(t, nodes, dl.Nodes())
	assert.False(t, conn.IsConnected())
}

func TestRootCannotDisconnect(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	assert.ErrorIs(t, dl.Disconnect(), ErrRootConnection)
	assert.True(t, dl.IsConnected())

	tok, ok := dl.Token()
	assert.True(t, ok)
	assert.True(t, tok.IsRoot())
}

func TestConnectionDownloadCoversSubtreeOnly(t *testing.T) {
	a, b := node.NewPoint("a"), node.NewPoint("b")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	backend.Set(b, 2)
	dl := newDownloader(t, backend)

	c1, _ := dl.NewConnection()
	c2, _ := dl.NewConnection()
	require.NoError(t, c1.AddNode(a))
	require.NoError(t, c2.AddNode(b))

	var c1Calls, c2Calls int
	_, _ = c1.AddCallback(func() error { c1Calls++; return nil }, 0)
	_, _ = c2.AddCallback(func() error { c2Calls++; return nil }, 0)

	require.NoError(t, c1.Download(context.Background()))
	assert.Equal(t, 1, c1Calls)
	assert.Equal(t, 0, c2Calls)
	_, ok := dl.Store().Get(b)
	assert.False(t, ok)

	require.NoError(t, dl.Download(context.Background()))
	assert.Equal(t, 2, c1Calls)
	assert.Equal(t, 1, c2Calls)
}

func TestCallbackPriorityAcrossConnections(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	c1, _ := dl.NewConnection()
	c2, _ := c1.NewConnection()

	var order []int
	add := func(c *Connection, prio int) {
		_, err := c.AddCallback(func() error {
			order = append(order, prio)
			return nil
		}, prio)
		require.NoError(t, err)
	}
	add(c2.Connection, 5)
	add(c1.Connection, 1)
	add(dl.Connection, 3)

	require.NoError(t, dl.Download(context.Background()))
	assert.Equal(t, []int{1, 3, 5}, order)
}

func TestRemoveCallback(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	var calls int
	id, err := dl.AddCallback(func() error { calls++; return nil }, 0)
	require.NoError(t, err)

	require.NoError(t, dl.Download(context.Background()))
	require.NoError(t, dl.RemoveCallback(id))
	require.NoError(t, dl.Download(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestFailureEdgeTriggering(t *testing.T) {
	a := node.NewPoint("a")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	dl := newDownloader(t, backend)
	require.NoError(t, dl.AddNode(a))

	var got []error
	_, err := dl.AddFailureCallback(func(err error) error {
		got = append(got, err)
		return nil
	}, 0)
	require.NoError(t, err)

	ctx := context.Background()
	backend.SetFailure(errors.New("link down"))
	require.NoError(t, dl.Download(ctx))
	require.NoError(t, dl.Download(ctx))
	backend.SetFailure(nil)
	require.NoError(t, dl.Download(ctx))
	require.NoError(t, dl.Download(ctx))

	require.Len(t, got, 3)
	var ioErr *BatchIOError
	assert.ErrorAs(t, got[0], &ioErr)
	assert.ErrorAs(t, got[1], &ioErr)
	assert.Nil(t, got[2])
}

func TestRecoveryNotifiedAfterRebuild(t *testing.T) {
	a, b := node.NewPoint("a"), node.NewPoint("b")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	backend.Set(b, 2)
	dl := newDownloader(t, backend)
	require.NoError(t, dl.AddNode(a))

	var got []error
	_, _ = dl.AddFailureCallback(func(err error) error {
		got = append(got, err)
		return nil
	}, 0)

	ctx := context.Background()
	backend.SetFailure(errors.New("link down"))
	require.NoError(t, dl.Download(ctx))

	// A sibling mutation recompiles the root cycle while it is failed.
	other, _ := dl.NewConnection()
	require.NoError(t, other.AddNode(b))

	backend.SetFailure(nil)
	require.NoError(t, dl.Download(ctx))

	require.Len(t, got, 2)
	assert.Error(t, got[0])
	assert.Nil(t, got[1])
}

func TestFailureWithoutCallbacksPropagates(t *testing.T) {
	a := node.NewPoint("a")
	backend := node.NewMemoryBackend()
	backend.SetFailure(errors.New("link down"))
	dl := newDownloader(t, backend)
	require.NoError(t, dl.AddNode(a))

	err := dl.Download(context.Background())
	var ioErr *BatchIOError
	require.ErrorAs(t, err, &ioErr)
	assert.EqualError(t, err, "batch read failed: link down")
	assert.Equal(t, err, dl.Info().Err)
}

func TestRoundTripThroughDataLink(t *testing.T) {
	power := node.NewPoint("power")
	limit := node.NewPoint("limit")
	backend := node.NewMemoryBackend()
	backend.Set(power, 1500)
	backend.Set(limit, 4000)

	shared := store.New()
	dl, err := NewDownloader(Config{Reader: backend, Store: shared})
	require.NoError(t, err)
	ul, err := NewUploader(Config{Writer: backend, Store: shared})
	require.NoError(t, err)

	var settings struct {
		Power int
		Limit int
	}
	link := node.NewFieldLink().
		Bind(power, func() any { return settings.Power }, func(v any) { settings.Power = v.(int) }).
		Bind(limit, func() any { return settings.Limit }, func(v any) { settings.Limit = v.(int) })
	require.NoError(t, dl.AddDataLink(link))
	require.NoError(t, ul.AddDataLink(link))

	var written node.Values
	spy, err := NewUploader(Config{Writer: node.WriterFunc(func(ctx context.Context, values node.Values) error {
		written = values
		return nil
	}), Store: shared})
	require.NoError(t, err)
	require.NoError(t, spy.AddDataLink(link))

	ctx := context.Background()
	require.NoError(t, dl.Download(ctx))
	assert.Equal(t, 1500, settings.Power)
	assert.Equal(t, 4000, settings.Limit)

	require.NoError(t, spy.Upload(ctx))
	assert.Equal(t, node.Values{power: 1500, limit: 4000}, written)

	settings.Limit = 3000
	require.NoError(t, ul.Upload(ctx))
	v, _ := backend.Get(limit)
	assert.Equal(t, 3000, v)
	v, _ = shared.Get(limit)
	assert.Equal(t, 3000, v)
}

func TestUploadWritesStoredValues(t *testing.T) {
	a := node.NewPoint("a")
	backend := node.NewMemoryBackend()
	ul, err := NewUploader(Config{Writer: backend})
	require.NoError(t, err)

	conn, _ := ul.NewConnection()
	require.NoError(t, conn.AddNode(a))
	require.NoError(t, ul.DataView("").Set("a", 42))

	require.NoError(t, conn.Upload(context.Background()))
	v, ok := backend.Get(a)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCleanData(t *testing.T) {
	a, b := node.NewPoint("a"), node.NewPoint("b")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	backend.Set(b, 2)
	dl := newDownloader(t, backend)

	conn, _ := dl.NewConnection()
	require.NoError(t, conn.AddNodes(a, b))
	require.NoError(t, dl.Download(context.Background()))
	require.Equal(t, 2, dl.Store().Len())

	require.NoError(t, conn.RemoveNode(b))
	assert.Equal(t, 1, dl.CleanData())
	_, ok := dl.Store().Get(b)
	assert.False(t, ok)

	require.NoError(t, conn.Disconnect())
	assert.Equal(t, 1, dl.CleanData())
	assert.Equal(t, 0, dl.Store().Len())
}

func TestDataViewPrefix(t *testing.T) {
	a := node.NewPoint("bat/soc")
	b := node.NewPoint("bat/power")
	c := node.NewPoint("pv/power")
	backend := node.NewMemoryBackend()
	backend.Set(a, 80)
	backend.Set(b, -500)
	backend.Set(c, 3000)
	dl := newDownloader(t, backend)
	require.NoError(t, dl.AddNodes(a, b, c))
	require.NoError(t, dl.Download(context.Background()))

	view := dl.DataView("bat/")
	assert.Equal(t, []string{"bat/power", "bat/soc"}, view.Keys())
	assert.Equal(t, map[string]any{"bat/soc": 80, "bat/power": -500}, view.Items())
	assert.ErrorIs(t, view.Set("pv/power", 1), store.ErrKeyNotInView)
}

func TestCycleEvents(t *testing.T) {
	a := node.NewPoint("a")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	rec := &eventRecorder{}
	dl, err := NewDownloader(Config{Reader: backend, EventLogger: rec})
	require.NoError(t, err)
	conn, _ := dl.NewConnection()
	require.NoError(t, conn.AddNode(a))

	require.NoError(t, conn.Download(context.Background()))
	require.Len(t, rec.events, 1)
	tok, _ := conn.Token()
	assert.Equal(t, tok.String(), rec.events[0].Scope)
	assert.Equal(t, log.DirectionDownload, rec.events[0].Direction)
	assert.Equal(t, log.OutcomeSuccess, rec.events[0].Outcome)
	assert.Equal(t, 1, rec.events[0].NodeCount)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func noSleep(context.Context, time.Duration) error { return nil }

func TestRunStopFunc(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	var cycles int
	_, _ = dl.AddCallback(func() error { cycles++; return nil }, 0)

	err := dl.Run(context.Background(), RunOptions{
		Stop:  func() bool { return cycles >= 3 },
		Sleep: noSleep,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cycles)
}

func TestRunCallbackStop(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	var first, second int
	_, _ = dl.AddCallback(func() error {
		first++
		if first == 2 {
			return ErrStop
		}
		return nil
	}, 0)
	_, _ = dl.AddCallback(func() error { second++; return nil }, 1)

	err := dl.Run(context.Background(), RunOptions{Sleep: noSleep})
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second, "callbacks after the stopping one still run")
}

func TestRunPropagatesErrors(t *testing.T) {
	a := node.NewPoint("a")
	backend := node.NewMemoryBackend()
	backend.Set(a, 1)
	dl := newDownloader(t, backend)
	require.NoError(t, dl.AddNode(a))

	boom := errors.New("boom")
	var calls int
	_, _ = dl.AddCallback(func() error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}, 0)

	err := dl.Run(context.Background(), RunOptions{Sleep: noSleep})
	assert.ErrorIs(t, err, boom)

	backend.SetFailure(errors.New("link down"))
	err = dl.Run(context.Background(), RunOptions{Sleep: noSleep})
	var ioErr *BatchIOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRunContextCancel(t *testing.T) {
	dl := newDownloader(t, node.NewMemoryBackend())
	ctx, cancel := context.WithCancel(context.Background())
	var cycles int
	_, _ = dl.AddCallback(func() error {
		cycles++
		cancel()
		return nil
	}, 0)

	err := dl.Run(ctx, RunOptions{Period: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, cycles, "the pending sleep ends with the context")
}

func TestRunSleepsRemainderOfPeriod(t *testing.T) {
	ul, err := NewUploader(Config{Writer: node.NewMemoryBackend()})
	require.NoError(t, err)

	var waits []time.Duration
	err = ul.Run(context.Background(), RunOptions{
		Period: time.Minute,
		Stop:   func() bool { return len(waits) == 2 },
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, waits, 2)
	for _, d := range waits {
		assert.Greater(t, d, 59*time.Second)
		assert.LessOrEqual(t, d, time.Minute)
	}
}
