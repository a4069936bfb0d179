package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/luki/classmon/internal/dashboard"
	"github.com/luki/classmon/internal/sensor"
	"github.com/luki/classmon/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Log, *dashboard.Publisher) {
	t.Helper()
	l := store.NewLog(filepath.Join(t.TempDir(), "live_data_dashboard.csv"))
	p := dashboard.NewPublisher()
	srv := httptest.NewServer(NewHandler(l, p, nil).NewRouter())
	t.Cleanup(srv.Close)
	return srv, l, p
}

func TestDownload(t *testing.T) {
	srv, l, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("before any data: got %d, want 404", resp.StatusCode)
	}

	rec := sensor.NewLogRecord(sensor.Reading{Temperature: 31, Humidity: 40}, time.Now(), 25, "Panas")
	if err := l.Append(rec); err != nil {
		t.Fatal(err)
	}

	resp, err = http.Get(srv.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, DownloadName) {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Timestamp,Temp_In") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestFrameEndpoint(t *testing.T) {
	srv, _, p := newTestServer(t)

	get := func() dashboard.Frame {
		resp, err := http.Get(srv.URL + "/api/frame")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var f dashboard.Frame
		if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	}

	if f := get(); !f.Waiting {
		t.Error("expected a waiting frame before anything is published")
	}

	p.Publish(dashboard.Frame{Records: 3, Status: "Nyaman"})
	if f := get(); f.Records != 3 || f.Status != "Nyaman" {
		t.Errorf("got %+v", f)
	}
}

func TestHealthRejectsPost(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/health", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: got %d, want 405", resp.StatusCode)
	}
}

func TestFrameWebsocket(t *testing.T) {
	srv, _, p := newTestServer(t)
	p.Publish(dashboard.Frame{Records: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	var f dashboard.Frame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if f.Records != 1 {
		t.Errorf("initial frame: got %d records, want 1", f.Records)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p.Publish(dashboard.Frame{Records: 2})

	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read pushed frame: %v", err)
	}
	if f.Records != 2 {
		t.Errorf("pushed frame: got %d records, want 2", f.Records)
	}
}
