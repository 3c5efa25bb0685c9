package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/progress"
)

type fakeConn struct {
	gone     chan struct{}
	goneOnce sync.Once
	closed   atomic.Bool
	returned atomic.Bool

	mu         sync.Mutex
	written    []int
	lateWrites int
}

func newFakeConn() *fakeConn {
	return &fakeConn{gone: make(chan struct{})}
}

func (f *fakeConn) disconnect() {
	f.goneOnce.Do(func() { close(f.gone) })
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.gone
	return 0, nil, errors.New("connection gone")
}

func (f *fakeConn) WriteMessage(messageType int, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.returned.Load() {
		f.lateWrites++
	}
	f.written = append(f.written, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	f.disconnect()
	return nil
}

func (f *fakeConn) wrote(messageType int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.written {
		if t == messageType {
			return true
		}
	}
	return false
}

func TestServeProgress_WriterStopsBeforeReturn(t *testing.T) {
	bus := progress.NewBus(logger.NewNopLogger())
	defer bus.Close()

	conn := newFakeConn()
	finished := make(chan struct{})
	go func() {
		ServeProgress(bus, conn, "s1", logger.NewNopLogger())
		conn.returned.Store(true)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(progress.Event{SessionID: "s1", Stage: progress.StageIndex, Message: "Embedding chunks"})
		return conn.wrote(websocket.TextMessage)
	}, 2*time.Second, 20*time.Millisecond)

	conn.disconnect()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeProgress did not return after the peer left")
	}

	assert.True(t, conn.wrote(websocket.CloseMessage))
	assert.True(t, conn.closed.Load())

	// Publishing after return must not reach the connection.
	bus.Publish(progress.Event{SessionID: "s1", Stage: progress.StageReady, Message: "late"})
	time.Sleep(50 * time.Millisecond)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Zero(t, conn.lateWrites)
}
