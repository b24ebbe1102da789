// Package drivertest provides an in-process automation server for tests.
package drivertest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/tomatool/uitest/internal/driver"
)

// HandlerFunc answers one method. A non-nil RemoteError is sent as the error.
type HandlerFunc func(params map[string]any) (any, *driver.RemoteError)

// Server is a fake automation server. By default every object exists, typed
// text is remembered per object and getText returns it.
type Server struct {
	URL string

	// StrayResponses makes the server send a response with an unknown id
	// before each real one.
	StrayResponses bool

	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	calls    []driver.Request
	handlers map[string]HandlerFunc
	texts    map[string]string
	missing  map[string]bool
	headers  []http.Header
}

// NewServer starts a server that is closed with the test
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		handlers: make(map[string]HandlerFunc),
		texts:    make(map[string]string),
		missing:  make(map[string]bool),
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serve))
	s.URL = "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/automation"
	t.Cleanup(s.httpServer.Close)

	return s
}

// Handle overrides the behavior of method
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// SetText sets the text returned for object
func (s *Server) SetText(object, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[object] = text
}

// Text returns the text last typed into object
func (s *Server) Text(object string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[object]
}

// Hide makes object absent: waits on it fail and isVisible is false
func (s *Server) Hide(object string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[object] = true
}

// Calls returns all requests received so far
func (s *Server) Calls() []driver.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driver.Request(nil), s.calls...)
}

// Methods returns the method names received so far
func (s *Server) Methods() []string {
	var methods []string
	for _, c := range s.Calls() {
		methods = append(methods, c.Method)
	}
	return methods
}

// Headers returns the handshake headers of every connection
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	for {
		var req driver.Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, req)
		stray := s.StrayResponses
		s.mu.Unlock()

		if stray {
			if err := conn.WriteJSON(driver.Response{ID: "stray"}); err != nil {
				return
			}
		}

		if err := conn.WriteJSON(s.respond(req)); err != nil {
			return
		}
		if req.Method == driver.MethodDetach {
			return
		}
	}
}

func (s *Server) respond(req driver.Request) map[string]any {
	s.mu.Lock()
	fn, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		fn = s.builtin(req.Method)
	}

	result, rerr := fn(req.Params)
	resp := map[string]any{"id": req.ID}
	if rerr != nil {
		resp["error"] = rerr
	} else if result != nil {
		resp["result"] = result
	}
	return resp
}

func (s *Server) builtin(method string) HandlerFunc {
	return func(params map[string]any) (any, *driver.RemoteError) {
		s.mu.Lock()
		defer s.mu.Unlock()

		object, _ := params["object"].(string)

		switch method {
		case driver.MethodAttach, driver.MethodNavigate, driver.MethodDetach:
			return nil, nil
		case driver.MethodWaitForObject, driver.MethodTap:
			if s.missing[object] {
				return nil, &driver.RemoteError{Code: 404, Message: "object not found: " + object}
			}
			return nil, nil
		case driver.MethodType:
			text, _ := params["text"].(string)
			s.texts[object] += text
			return nil, nil
		case driver.MethodClear:
			s.texts[object] = ""
			return nil, nil
		case driver.MethodGetText:
			return s.texts[object], nil
		case driver.MethodIsVisible:
			return !s.missing[object], nil
		default:
			return nil, &driver.RemoteError{Code: 400, Message: "unknown method: " + method}
		}
	}
}
