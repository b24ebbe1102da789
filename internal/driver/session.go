package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrDetached is returned by calls on a session that has been detached
	ErrDetached = errors.New("application session detached")
	// ErrNoApplication is returned when no application session is active
	ErrNoApplication = errors.New("no application is attached")
)

const (
	defaultCallTimeout   = 30 * time.Second
	defaultObjectTimeout = 10 * time.Second
)

// Session is an attached application context on the automation server
type Session struct {
	name string
	url  string

	dialer        *websocket.Dialer
	headers       http.Header
	callTimeout   time.Duration
	objectTimeout time.Duration
	transcript    zerolog.Logger

	conn *websocket.Conn
	mu   sync.Mutex
}

// Option configures a Session
type Option func(*Session)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialer.HandshakeTimeout = d }
}

func WithHeaders(headers map[string]string) Option {
	return func(s *Session) {
		for k, v := range headers {
			s.headers.Set(k, v)
		}
	}
}

// WithCallTimeout bounds a single request/response round trip
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) { s.callTimeout = d }
}

func WithObjectTimeout(d time.Duration) Option {
	return func(s *Session) { s.objectTimeout = d }
}

// WithTranscript logs every request and response to l
func WithTranscript(l zerolog.Logger) Option {
	return func(s *Session) { s.transcript = l }
}

// Attach connects to the automation server at url and attaches to the
// application called name.
func Attach(ctx context.Context, name, url string, opts ...Option) (*Session, error) {
	s := &Session{
		name:          name,
		url:           url,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		headers:       make(http.Header),
		callTimeout:   defaultCallTimeout,
		objectTimeout: defaultObjectTimeout,
		transcript:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	conn, resp, err := s.dialer.DialContext(ctx, url, s.headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connecting to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	s.conn = conn

	if err := s.Call(ctx, MethodAttach, map[string]any{"application": name}, nil); err != nil {
		s.close()
		return nil, fmt.Errorf("attaching to %s: %w", name, err)
	}

	return s, nil
}

func (s *Session) Name() string { return s.name }
func (s *Session) URL() string  { return s.url }

// Detached reports whether the session can no longer be used
func (s *Session) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == nil
}

// SetObjectTimeout changes the default wait used by WaitForObject
func (s *Session) SetObjectTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectTimeout = d
}

// Call sends one request and waits for its response. Responses to other
// requests are discarded. result may be nil.
func (s *Session) Call(ctx context.Context, method string, params map[string]any, result any) error {
	return s.call(ctx, s.callTimeout, method, params, result)
}

func (s *Session) call(ctx context.Context, timeout time.Duration, method string, params map[string]any, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.conn
	if conn == nil {
		return ErrDetached
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	req := Request{ID: uuid.NewString(), Method: method, Params: params}
	start := time.Now()
	s.transcript.Debug().Str("id", req.ID).Str("method", method).Interface("params", params).Msg("request")

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		s.dropLocked()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	conn.SetReadDeadline(deadline)
	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			// a failed read leaves the connection unusable
			s.dropLocked()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("waiting for %s: %w", method, ctxErr)
			}
			// the read deadline can fire just before the context's own timer
			if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
				return fmt.Errorf("waiting for %s: %w", method, context.DeadlineExceeded)
			}
			return fmt.Errorf("waiting for %s: %w", method, err)
		}
		if resp.ID != req.ID {
			s.transcript.Debug().Str("id", resp.ID).Msg("discarding unexpected response")
			continue
		}

		s.transcript.Debug().Str("id", resp.ID).Str("method", method).Dur("took", time.Since(start)).Bool("ok", resp.Error == nil).Msg("response")

		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Navigate moves the application to a named screen
func (s *Session) Navigate(ctx context.Context, screen string) error {
	return s.Call(ctx, MethodNavigate, map[string]any{"screen": screen}, nil)
}

// WaitForObject blocks until object is present and visible, up to the
// session's object timeout.
func (s *Session) WaitForObject(ctx context.Context, object string) error {
	s.mu.Lock()
	wait := s.objectTimeout
	s.mu.Unlock()

	params := map[string]any{"object": object, "timeout_ms": wait.Milliseconds()}
	return s.call(ctx, wait+s.callTimeout, MethodWaitForObject, params, nil)
}

func (s *Session) Tap(ctx context.Context, object string) error {
	return s.Call(ctx, MethodTap, map[string]any{"object": object}, nil)
}

// Type enters text into object
func (s *Session) Type(ctx context.Context, object, text string) error {
	return s.Call(ctx, MethodType, map[string]any{"object": object, "text": text}, nil)
}

func (s *Session) Clear(ctx context.Context, object string) error {
	return s.Call(ctx, MethodClear, map[string]any{"object": object}, nil)
}

// Text returns the displayed text of object
func (s *Session) Text(ctx context.Context, object string) (string, error) {
	var text string
	if err := s.Call(ctx, MethodGetText, map[string]any{"object": object}, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (s *Session) IsVisible(ctx context.Context, object string) (bool, error) {
	var visible bool
	if err := s.Call(ctx, MethodIsVisible, map[string]any{"object": object}, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// Detach releases the application and closes the connection. Detaching a
// detached session is a no-op.
func (s *Session) Detach(ctx context.Context) error {
	if s.Detached() {
		return nil
	}

	err := s.Call(ctx, MethodDetach, nil, nil)
	s.close()
	if err != nil {
		return fmt.Errorf("detaching %s: %w", s.name, err)
	}
	return nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.dropLocked()
	}
}

// dropLocked closes the connection and marks the session detached. s.mu must
// be held.
func (s *Session) dropLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
