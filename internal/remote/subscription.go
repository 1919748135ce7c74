package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

const (
	eventBuffer  = 64
	maxFrameSize = 1 << 20
)

// envelope is one frame of the family live channel.
type envelope struct {
	Type     string          `json:"type"`
	Entity   string          `json:"entity"`
	Action   string          `json:"action"`
	FamilyID string          `json:"family_id"`
	ID       int64           `json:"id"`
	Record   json.RawMessage `json:"record"`
}

type subscription struct {
	conn   *ws.Conn
	events chan backend.Event
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// Subscribe opens the live channel for familyID. Message inserts and updates
// are delivered on Events until ctx ends, the server goes away, or Close is
// called.
func (c *Client) Subscribe(ctx context.Context, familyID string) (backend.Subscription, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, fmt.Errorf("parse live channel url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"family_id": {familyID}}.Encode()

	header := http.Header{}
	if tok := c.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := ws.Dial(ctx, u.String(), &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(http.StatusText(resp.StatusCode))}
		}
		return nil, fmt.Errorf("dial live channel: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		conn:   conn,
		events: make(chan backend.Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx)
	return s, nil
}

func (s *subscription) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.fail(err)
			return
		}
		ev, ok := decodeEvent(data)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.fail(ctx.Err())
			return
		}
	}
}

// decodeEvent turns a frame into a message event. Frames for other entities,
// deletes and malformed records are skipped.
func decodeEvent(data []byte) (backend.Event, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Entity != "message" {
		return backend.Event{}, false
	}
	var kind backend.EventKind
	switch env.Action {
	case "insert":
		kind = backend.EventInsert
	case "update":
		kind = backend.EventUpdate
	default:
		return backend.Event{}, false
	}
	var msg model.Message
	if len(env.Record) == 0 || json.Unmarshal(env.Record, &msg) != nil || msg.ID == 0 {
		return backend.Event{}, false
	}
	return backend.Event{Kind: kind, Message: msg}, true
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	if ws.CloseStatus(err) == ws.StatusNormalClosure {
		err = errors.New("live channel closed by server")
	}
	s.err = err
}

func (s *subscription) Events() <-chan backend.Event {
	return s.events
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the channel and waits for the reader to stop.
func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.err = nil
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.conn.CloseNow()
	return nil
}
