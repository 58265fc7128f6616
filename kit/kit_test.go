package kit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}
	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if len(order) != len(want) {
		t.Fatalf("order: got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestLogging_PropagatesError(t *testing.T) {
	errFail := errors.New("fail")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ep := Logging(logger, "op")(func(context.Context, any) (any, error) { return nil, errFail })
	if _, err := ep(context.Background(), nil); !errors.Is(err, errFail) {
		t.Fatalf("got %v", err)
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("transport default: got %q", v)
	}
	if v := GetActor(ctx); v != "" {
		t.Fatalf("actor default: got %q", v)
	}
	ctx = WithActor(WithTraceID(ctx, "abcd"), "admin")
	if GetActor(ctx) != "admin" || GetTraceID(ctx) != "abcd" {
		t.Fatalf("got actor=%q trace=%q", GetActor(ctx), GetTraceID(ctx))
	}
}

func TestDefaultActor(t *testing.T) {
	var got []string
	ep := DefaultActor("mcp")(func(ctx context.Context, _ any) (any, error) {
		got = append(got, GetActor(ctx))
		return nil, nil
	})
	ep(context.Background(), nil)
	ep(WithActor(context.Background(), "ops"), nil)
	if len(got) != 2 || got[0] != "mcp" || got[1] != "ops" {
		t.Fatalf("got %v", got)
	}
}
