package logger

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	fileKey
)

// WithRequestID returns a copy of ctx carrying the HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id of ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithFile returns a copy of ctx naming the prompt file being worked on.
// Records logged with the context carry it as the "file" attribute.
func WithFile(ctx context.Context, file string) context.Context {
	return context.WithValue(ctx, fileKey, file)
}

// File returns the prompt file of ctx, or "".
func File(ctx context.Context) string {
	f, _ := ctx.Value(fileKey).(string)
	return f
}
