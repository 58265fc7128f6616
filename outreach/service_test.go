package outreach

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/outreach/dbopen"
	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/sourcedata"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

// liveConfig enables real sends.
func liveConfig() *Config {
	return &Config{Enabled: true, DryRun: boolPtr(false)}
}

// testService creates a Service over an in-memory database. Pacing is
// disabled and every channel fails until a test registers its own fake.
func testService(t *testing.T, cfg *Config, opts ...Option) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s := New(db, cfg, opts...)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	for _, ch := range channels.All {
		s.channels.Register(ch, channels.ExecutorFunc(func(context.Context, string, any) channels.Result {
			return channels.Result{Error: "unreachable in tests"}
		}))
	}
	return s
}

// recorder is a fake executor that logs every address it is called with.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	result channels.Result
}

func (r *recorder) Execute(_ context.Context, address string, _ any) channels.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, address)
	return r.result
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func stub(s *Service, ch channels.Channel, res channels.Result) *recorder {
	r := &recorder{result: res}
	s.channels.Register(ch, r)
	return r
}

var delivered = channels.Result{Success: true, Sent: true, Status: 200, Response: []byte(`{"ok":true}`)}

// seedTarget inserts a target reachable through REST at endpoint.
func seedTarget(t *testing.T, s *Service, id, sourceURL, endpoint string) *store.Target {
	t.Helper()
	tg := &store.Target{
		ID:             id,
		Name:           "Agent " + id,
		Description:    "An agent that answers support questions for developers",
		Skills:         []string{"support"},
		SourceURL:      sourceURL,
		SourcePlatform: "csv",
		EndpointURL:    endpoint,
		SourceData:     sourcedata.Parse([]byte(`{}`)),
	}
	if _, err := s.store.InsertTarget(context.Background(), tg); err != nil {
		t.Fatalf("insert target: %v", err)
	}
	return tg
}
