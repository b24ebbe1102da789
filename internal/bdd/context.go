package bdd

import "context"

// Data keys filled in by the binder
const (
	DataText = "text"
	DataURI  = "uri"
)

// Context is the state handed to every hook. UserData is shared by the hooks
// and steps of one feature; Data describes the step that just ran.
type Context struct {
	UserData map[string]any
	Data     map[string]any
}

// NewContext returns an empty context
func NewContext() *Context {
	return &Context{
		UserData: make(map[string]any),
		Data:     make(map[string]any),
	}
}

// Text returns the text of the current step, or "" before the first step
func (c *Context) Text() string {
	s, _ := c.Data[DataText].(string)
	return s
}

type contextKey struct{}

// WithContext attaches bc to ctx
func WithContext(ctx context.Context, bc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, bc)
}

// FromContext returns the hook context attached to ctx, if any
func FromContext(ctx context.Context) (*Context, bool) {
	bc, ok := ctx.Value(contextKey{}).(*Context)
	return bc, ok && bc != nil
}
