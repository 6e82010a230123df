package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/realtime"
)

type fakeConn struct {
	reads     chan []byte
	mu        sync.Mutex
	writes    []realtime.Message
	closed    chan struct{}
	closeOnce sync.Once
	// onWrite, when set, sees each frame before it is recorded
	onWrite  func(realtime.Message)
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	var msg realtime.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if f.onWrite != nil {
		f.onWrite(msg)
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, msg)
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) send(msg realtime.Message) {
	data, _ := json.Marshal(msg)
	f.reads <- data
}

func (f *fakeConn) messages() []realtime.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Message(nil), f.writes...)
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type memoryStore map[string]*auth.Credential

func (m memoryStore) FindByID(_ context.Context, id string) (*auth.Credential, error) {
	if cred, ok := m[id]; ok {
		return cred, nil
	}
	return nil, auth.ErrIdentityNotFound
}
