package midi

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	sendErr  error
	closeErr error
}

func (o *fakeOutput) Send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.sent = append(o.sent, append([]byte(nil), msg...))
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return o.closeErr
}

func (o *fakeOutput) Sent() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.sent...)
}

func (o *fakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func TestRegistryAppend(t *testing.T) {
	t.Run("appends in order", func(t *testing.T) {
		r := NewRegistry()
		require.True(t, r.Append("A", &fakeOutput{}))
		require.True(t, r.Append("B", &fakeOutput{}))

		assert.Equal(t, []string{"A", "B"}, r.IDs())
		assert.Equal(t, 2, r.Len())
		assert.True(t, r.Contains("A"))
		assert.False(t, r.Contains("C"))
	})

	t.Run("same identity twice keeps the first handle", func(t *testing.T) {
		r := NewRegistry()
		first := &fakeOutput{}
		second := &fakeOutput{}

		require.True(t, r.Append("A", first))
		require.False(t, r.Append("A", second))
		assert.Equal(t, 1, r.Len())

		require.True(t, r.TryBroadcast(ClockMessage))
		assert.Equal(t, [][]byte{{0xF8}}, first.Sent())
		assert.Empty(t, second.Sent())
	})

	t.Run("IDs returns a copy", func(t *testing.T) {
		r := NewRegistry()
		r.Append("A", &fakeOutput{})
		ids := r.IDs()
		ids[0] = "mutated"
		assert.Equal(t, []string{"A"}, r.IDs())
	})
}

func TestRegistryTryBroadcast(t *testing.T) {
	t.Run("empty registry succeeds", func(t *testing.T) {
		r := NewRegistry()
		assert.True(t, r.TryBroadcast(ClockMessage))
	})

	t.Run("sends to every output in append order", func(t *testing.T) {
		r := NewRegistry()
		var order []string
		var mu sync.Mutex
		for _, id := range []string{"A", "B", "C"} {
			r.Append(id, &orderedOutput{id: id, order: &order, mu: &mu})
		}

		require.True(t, r.TryBroadcast(StartMessage))
		assert.Equal(t, []string{"A", "B", "C"}, order)
	})

	t.Run("skips while the lock is held", func(t *testing.T) {
		r := NewRegistry()
		out := &fakeOutput{}
		r.Append("A", out)

		r.mu.Lock()
		ok := r.TryBroadcast(ClockMessage)
		r.mu.Unlock()

		assert.False(t, ok)
		assert.Empty(t, out.Sent())

		// the skipped message leaves nothing behind
		require.True(t, r.TryBroadcast(ClockMessage))
		assert.Equal(t, [][]byte{{0xF8}}, out.Sent())
	})

	t.Run("a failing output does not stop the others", func(t *testing.T) {
		r := NewRegistry()
		bad := &fakeOutput{sendErr: errors.New("unplugged")}
		good := &fakeOutput{}
		r.Append("bad", bad)
		r.Append("good", good)

		assert.True(t, r.TryBroadcast(StopMessage))
		assert.Equal(t, [][]byte{{0xFC}}, good.Sent())
	})
}

type orderedOutput struct {
	id    string
	order *[]string
	mu    *sync.Mutex
}

func (o *orderedOutput) Send([]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.order = append(*o.order, o.id)
	return nil
}

func (o *orderedOutput) Close() error { return nil }

func TestRegistryConcurrentAppendAndBroadcast(t *testing.T) {
	r := NewRegistry()
	const devices = 200

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var attempted, skipped int

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			attempted++
			if !r.TryBroadcast(ClockMessage) {
				skipped++
			}
		}
	}()

	outs := make([]*fakeOutput, devices)
	for i := range outs {
		outs[i] = &fakeOutput{}
		require.True(t, r.Append(fmt.Sprintf("dev-%d", i), outs[i]))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, devices, r.Len())
	assert.LessOrEqual(t, skipped, attempted)

	// every appended device is reachable once appends are done
	require.True(t, r.TryBroadcast(ClockMessage))

	// each broadcast reaches a prefix of the devices, so a device appended
	// later never has more messages than one appended before it
	for i, out := range outs {
		n := len(out.Sent())
		assert.GreaterOrEqual(t, n, 1, "dev-%d missed the final broadcast", i)
		if i > 0 {
			assert.LessOrEqual(t, n, len(outs[i-1].Sent()), "dev-%d", i)
		}
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	a := &fakeOutput{}
	b := &fakeOutput{closeErr: errors.New("busy")}
	r.Append("A", a)
	r.Append("B", b)

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `close "B"`)
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}
