package controller

import (
	"net/http"

	"go.uber.org/zap"
)

// Context carries the request and response state for one dispatch.
// It is owned exclusively by the single in-flight dispatch; handlers in the
// chain see the same Context in sequence and never concurrently.
type Context struct {
	// Request is the inbound HTTP request, opaque to the dispatcher.
	Request *http.Request

	writer     *trackingWriter
	logger     *zap.Logger
	controller string
	action     string
}

// Writer returns the response writer for this dispatch. Writes through it
// mark the response as sent, which the dispatcher consults when reconciling
// completion signals.
func (c *Context) Writer() http.ResponseWriter {
	return c.writer
}

// Sent reports whether any handler has started writing the response.
func (c *Context) Sent() bool {
	return c.writer.sent()
}

// Controller returns the name of the controller handling this dispatch.
func (c *Context) Controller() string {
	return c.controller
}

// Action returns the name of the dispatched action.
func (c *Context) Action() string {
	return c.action
}

// Logger returns the controller's logger annotated with the controller and
// action names.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Text writes a plain-text response with the given status code. It is a
// small convenience for handlers; anything richer belongs to the handler
// itself, response serialization is not this layer's concern.
func (c *Context) Text(statusCode int, body string) error {
	c.writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.writer.WriteHeader(statusCode)
	_, err := c.writer.Write([]byte(body))
	return err
}

// trackingWriter is a wrapper around http.ResponseWriter that records whether
// the response has been started. This allows the dispatcher to distinguish a
// handler that sent a response from one that silently did nothing.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader  bool
	bytesWritten int64
}

// WriteHeader marks the response as sent and calls the underlying
// ResponseWriter.WriteHeader.
func (w *trackingWriter) WriteHeader(statusCode int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write marks the response as sent, tracks the bytes written, and calls the
// underlying ResponseWriter.Write.
func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements
// http.Flusher. This allows streaming responses to be flushed to the client
// immediately.
func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *trackingWriter) sent() bool {
	return w.wroteHeader || w.bytesWritten > 0
}
