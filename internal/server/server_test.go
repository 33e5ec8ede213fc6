package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/assetflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*PreviewServer, *httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default().WithRoot(root)

	files := map[string]string{
		"index.html":          "<html><body><h1>Home</h1></body></html>",
		"about/index.html":    "<html><BODY>About</BODY></html>",
		"css/styles.min.css":  "body{margin:0}",
		"images/stack/x.html": "fragment",
	}
	for name, content := range files {
		path := filepath.Join(cfg.Paths.App, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := New(cfg, nil)
	ts := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(ts.Close)
	return s, ts, cfg.Paths.App
}

func get(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestStaticInjectsReloadClient(t *testing.T) {
	_, ts, _ := newTestServer(t)

	status, body, header := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.Contains(t, body, `new WebSocket(proto + "//" + location.host + "/ws")`)
	assert.True(t, strings.HasSuffix(body, "</body></html>"))

	_, body, _ = get(t, ts.URL+"/about/")
	assert.Contains(t, body, "</script>\n</BODY>")
}

func TestStaticServesAssetsUntouched(t *testing.T) {
	_, ts, _ := newTestServer(t)

	status, body, header := get(t, ts.URL+"/css/styles.min.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body{margin:0}", body)
	assert.Equal(t, "no-cache", header.Get("Cache-Control"))

	status, _, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = get(t, ts.URL+"/../../etc/passwd")
	assert.NotEqual(t, http.StatusOK, status)
}

func TestStaticRejectsWrites(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.html", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	_, ts, app := newTestServer(t)

	status, body, _ := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, status)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, app, health["root"])
	assert.Equal(t, float64(0), health["clients"])
}

func TestInjectReloadClient(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{"before body", "<body>x</body>", "<body>x" + reloadClient + "</body>"},
		{"last body wins", "<body><!-- </body> --></body>", "<body><!-- </body> -->" + reloadClient + "</body>"},
		{"no body", "<p>fragment</p>", "<p>fragment</p>" + reloadClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InjectReloadClient([]byte(tt.page))))
		})
	}
}

func dial(ctx context.Context, ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) UpdateMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketBroadcast(t *testing.T) {
	s, ts, app := newTestServer(t)
	ctx := context.Background()

	conn, _, err := dial(ctx, ts, "http://localhost:3000")
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Inject(filepath.Join(app, "css", "styles.min.css"))
	msg := readMessage(t, ctx, conn)
	assert.Equal(t, MessageInject, msg.Type)
	assert.Equal(t, "/css/styles.min.css", msg.Target)
	assert.NotEmpty(t, msg.ID)

	s.Reload()
	msg = readMessage(t, ctx, conn)
	assert.Equal(t, MessageReload, msg.Type)
	assert.Empty(t, msg.Target)
}

func TestWebSocketClientsGetDistinctMessageIDs(t *testing.T) {
	s, ts, app := newTestServer(t)
	ctx := context.Background()

	conn, _, err := dial(ctx, ts, "http://127.0.0.1:8080")
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Reload(filepath.Join(app, "index.html"), filepath.Join(app, "about", "index.html"))
	first := readMessage(t, ctx, conn)
	second := readMessage(t, ctx, conn)

	assert.Equal(t, "/index.html", first.Target)
	assert.Equal(t, "/about/index.html", second.Target)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	s, ts, _ := newTestServer(t)

	conn, _, err := dial(context.Background(), ts, "http://localhost:3000")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "bye")
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketAfterHubStopsDoesNotHang(t *testing.T) {
	cfg := config.Default().WithRoot(t.TempDir())
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(s.Handler(ctx))
	defer ts.Close()

	cancel()
	select {
	case <-s.hubDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, _, err := dial(dialCtx, ts, "http://localhost:3000")
	require.NoError(t, err)
	defer conn.CloseNow()

	_, _, err = conn.Read(dialCtx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, s.ClientCount())
}

func TestWebSocketHubStopClosesClients(t *testing.T) {
	cfg := config.Default().WithRoot(t.TempDir())
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(s.Handler(ctx))
	defer ts.Close()

	conn, _, err := dial(context.Background(), ts, "http://localhost:3000")
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	_, _, err = conn.Read(readCtx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, s.ClientCount())
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, ts, _ := newTestServer(t)

	_, resp, err := dial(context.Background(), ts, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "devbox.local"
	s := New(cfg, nil)

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"http://127.0.0.1:9999", true},
		{"http://[::1]:3000", true},
		{"http://devbox.local:3000", true},
		{"http://devbox.local.evil.example", false},
		{"", false},
		{"ws://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(r))
		})
	}
}

func TestNotifyWithoutHubDoesNotBlock(t *testing.T) {
	s := New(config.Default(), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Reload("index.html")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifications blocked without a running hub")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	s := New(config.Default().WithRoot(root), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAddr(t *testing.T) {
	s := New(config.Default(), nil)
	assert.Equal(t, "localhost:3000", s.Addr())
	assert.Equal(t, "http://localhost:3000", s.URL())
}
