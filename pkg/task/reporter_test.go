package task

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/drover/pkg/types"
)

func TestChannelReporterPreservesOrder(t *testing.T) {
	r := NewChannelReporter(200)
	for i := 1; i <= 100; i++ {
		r.Report(&types.Event{Seq: uint64(i)})
	}
	r.Close()

	var got []uint64
	for ev := range r.Events() {
		got = append(got, ev.Seq)
	}

	require.Len(t, got, 100)
	for i, seq := range got {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestChannelReporterBlocksWhenFull(t *testing.T) {
	r := NewChannelReporter(1)
	r.Report(&types.Event{Seq: 1})

	delivered := make(chan struct{})
	go func() {
		r.Report(&types.Event{Seq: 2})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("report into a full buffer must block, not drop")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, uint64(1), (<-r.Events()).Seq)
	<-delivered
	assert.Equal(t, uint64(2), (<-r.Events()).Seq)
}

func TestChannelReporterCloseIsIdempotent(t *testing.T) {
	r := NewChannelReporter(1)
	r.Close()
	r.Close()

	_, ok := <-r.Events()
	assert.False(t, ok)
}

func TestChannelReporterDefaultBuffer(t *testing.T) {
	r := NewChannelReporter(0)
	assert.Equal(t, DefaultEventBuffer, cap(r.ch))
}

func TestMultiReporterFansOutInRegistrationOrder(t *testing.T) {
	var mu sync.Mutex
	var log []string
	named := func(name string) Reporter {
		return ReporterFunc(func(ev *types.Event) {
			mu.Lock()
			defer mu.Unlock()
			log = append(log, fmt.Sprintf("%s:%d", name, ev.Seq))
		})
	}

	m := NewMultiReporter(named("a"), nil, named("b"))
	m.Report(&types.Event{Seq: 1})
	m.Report(&types.Event{Seq: 2})

	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, log)
}
