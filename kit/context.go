package kit

import "context"

type contextKey string

const (
	ActorKey     contextKey = "kit_actor"
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	TraceIDKey   contextKey = "kit_trace_id"
	RemoteIPKey  contextKey = "kit_remote_ip"
)

// WithActor records who triggered an admin operation (session subject or "mcp").
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
func GetActor(ctx context.Context) string {
	v, _ := ctx.Value(ActorKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, ip)
}
func GetRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(RemoteIPKey).(string)
	return v
}
