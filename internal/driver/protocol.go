package driver

import (
	"encoding/json"
	"fmt"
)

// Automation methods understood by the automation server
const (
	MethodAttach        = "attach"
	MethodNavigate      = "navigate"
	MethodWaitForObject = "waitForObject"
	MethodTap           = "tap"
	MethodType          = "type"
	MethodClear         = "clear"
	MethodGetText       = "getText"
	MethodIsVisible     = "isVisible"
	MethodDetach        = "detach"
)

// Request is a single automation command
type Request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Response answers the request with the same ID
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is a failure reported by the automation server
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("automation error %d: %s", e.Code, e.Message)
}
