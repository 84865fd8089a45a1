package channels

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

type fakeChannel struct {
	name string

	mu      sync.Mutex
	sent    []bus.OutboundMessage
	started bool
	stopped bool
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeChannel) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeChannel) Send(msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) sentMessages() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bus.OutboundMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestManager(t *testing.T, chans ...*fakeChannel) (*Manager, *bus.MessageBus) {
	t.Helper()
	b := bus.NewMessageBus()
	m := NewManager(config.DefaultConfig(), b)
	for _, c := range chans {
		m.Register(c)
	}
	return m, b
}

func TestDefaultConfigEnablesNoChannels(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Empty(t, m.EnabledChannels())
}

func TestDispatchRoutesToChannel(t *testing.T) {
	tg := &fakeChannel{name: "telegram"}
	dc := &fakeChannel{name: "discord"}
	m, b := newTestManager(t, tg, dc)

	m.StartAll()
	defer m.StopAll()

	b.PublishOutbound(bus.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})
	b.PublishOutbound(bus.OutboundMessage{Channel: "discord", ChatID: "99", Content: "yo"})

	require.Eventually(t, func() bool {
		return len(tg.sentMessages()) == 1 && len(dc.sentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "42", tg.sentMessages()[0].ChatID)
	assert.Equal(t, "hi", tg.sentMessages()[0].Content)
	assert.Equal(t, "yo", dc.sentMessages()[0].Content)
}

func TestDispatchDropsUnknownChannel(t *testing.T) {
	tg := &fakeChannel{name: "telegram"}
	m, b := newTestManager(t, tg)

	m.StartAll()
	defer m.StopAll()

	b.PublishOutbound(bus.OutboundMessage{Channel: "carrier-pigeon", ChatID: "1", Content: "lost"})
	b.PublishOutbound(bus.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "found"})

	require.Eventually(t, func() bool {
		return len(tg.sentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "found", tg.sentMessages()[0].Content)
}

func TestStartAllStartsChannels(t *testing.T) {
	tg := &fakeChannel{name: "telegram"}
	m, _ := newTestManager(t, tg)

	m.StartAll()
	m.StopAll()

	tg.mu.Lock()
	defer tg.mu.Unlock()
	assert.True(t, tg.started)
	assert.True(t, tg.stopped)
}

func TestStopAllWaitsForDispatcher(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartAll()

	done := make(chan struct{})
	go func() {
		m.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("StopAll did not return")
	}
}

func TestGetAndEnabledChannels(t *testing.T) {
	tg := &fakeChannel{name: "telegram"}
	m, _ := newTestManager(t, tg)

	c, ok := m.Get("telegram")
	require.True(t, ok)
	assert.Equal(t, "telegram", c.Name())

	_, ok = m.Get("discord")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"telegram"}, m.EnabledChannels())
}
