package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	l := NoopLayoutHooks{}
	l.OnLayoutStart(ctx, "active", "force", 12)
	l.OnLayoutComplete(ctx, LayoutEvent{Plane: "active", Algorithm: "force", Duration: time.Millisecond})

	s := NoopSchedulerHooks{}
	s.OnRelayout(ctx, "inactive", "resize")
	s.OnResizeCoalesced(ctx, "inactive")
	s.OnFrame(ctx, "active")

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "scene")
	c.OnCacheMiss(ctx, "scene")
	c.OnCacheSet(ctx, "scene", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "example.com", "/data.json")
	h.OnResponse(ctx, "GET", "example.com", "/data.json", 200, time.Second)
	h.OnError(ctx, "GET", "example.com", "/data.json", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Layout() should return NoopLayoutHooks by default")
	}
	if _, ok := Scheduler().(NoopSchedulerHooks); !ok {
		t.Error("Scheduler() should return NoopSchedulerHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customLayout := &testLayoutHooks{}
	SetLayoutHooks(customLayout)
	if Layout() != customLayout {
		t.Error("SetLayoutHooks should set custom hooks")
	}
	customScheduler := &testSchedulerHooks{}
	SetSchedulerHooks(customScheduler)
	if Scheduler() != customScheduler {
		t.Error("SetSchedulerHooks should set custom hooks")
	}
	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}
	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Reset() should restore NoopLayoutHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testLayoutHooks{}
	SetLayoutHooks(custom)
	SetLayoutHooks(nil)
	if Layout() != custom {
		t.Error("SetLayoutHooks(nil) should be ignored")
	}
}

func TestPromHooksExposeMetrics(t *testing.T) {
	ctx := context.Background()
	h := NewPromHooks()

	h.OnLayoutComplete(ctx, LayoutEvent{Plane: "active", Algorithm: "force", Items: 4, Steps: 83, Duration: 2 * time.Millisecond})
	h.OnLayoutComplete(ctx, LayoutEvent{Plane: "inactive", Algorithm: "spiral", Fallbacks: 2})
	h.OnLayoutComplete(ctx, LayoutEvent{Plane: "inactive", Algorithm: "spiral", Err: errors.New("boom")})
	h.OnRelayout(ctx, "inactive", "resize")
	h.OnResizeCoalesced(ctx, "inactive")
	h.OnFrame(ctx, "active")
	h.OnCacheHit(ctx, "scene")
	h.OnCacheSet(ctx, "scene", 512)
	h.OnResponse(ctx, "GET", "example.com", "/d.json", 200, time.Millisecond)
	h.OnError(ctx, "GET", "example.com", "/d.json", errors.New("reset"))
	h.ObserveRequest("GET", "/api/v1/scene/{year}", 200, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`techmap_layout_runs_total{algorithm="force",outcome="ok",plane="active"} 1`,
		`techmap_layout_runs_total{algorithm="spiral",outcome="fallback",plane="inactive"} 1`,
		`techmap_layout_runs_total{algorithm="spiral",outcome="error",plane="inactive"} 1`,
		`techmap_layout_fallback_items_total{plane="inactive"} 2`,
		`techmap_scheduler_relayouts_total{plane="inactive",reason="resize"} 1`,
		`techmap_scheduler_resizes_coalesced_total{plane="inactive"} 1`,
		`techmap_scheduler_frames_total{plane="active"} 1`,
		`techmap_cache_operations_total{key_type="scene",op="hit"} 1`,
		`techmap_cache_written_bytes_total{key_type="scene"} 512`,
		`techmap_http_client_requests_total{code="200",host="example.com",method="GET"} 1`,
		`techmap_http_client_errors_total{host="example.com",method="GET"} 1`,
		`techmap_http_server_requests_total{code="200",method="GET",route="/api/v1/scene/{year}"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestPromHooksInstall(t *testing.T) {
	Reset()
	defer Reset()

	h := NewPromHooks()
	h.Install()
	if Layout() != LayoutHooks(h) || Scheduler() != SchedulerHooks(h) || Cache() != CacheHooks(h) || HTTP() != HTTPHooks(h) {
		t.Error("Install should register the hooks for every category")
	}
}

type testLayoutHooks struct{ NoopLayoutHooks }
type testSchedulerHooks struct{ NoopSchedulerHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
