package server

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

// reloadClient reconnects after server restarts, swaps stylesheets on
// "inject" and reloads the page on anything else.
const reloadClient = `<script>(function(){
var proto = location.protocol === "https:" ? "wss:" : "ws:";
function inject(target) {
  var links = document.querySelectorAll('link[rel="stylesheet"]');
  var swapped = false;
  for (var i = 0; i < links.length; i++) {
    var url = new URL(links[i].href, location.href);
    if (!target || url.pathname === target) {
      url.searchParams.set("assetflow", Date.now());
      links[i].href = url.toString();
      swapped = true;
    }
  }
  if (!swapped) location.reload();
}
function connect() {
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onmessage = function(e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "inject") inject(msg.target); else location.reload();
  };
  ws.onclose = function() { setTimeout(connect, 1000); };
}
connect();
})();</script>
`

// InjectReloadClient inserts the live reload client before the last closing
// body tag, or appends it when the document has none.
func InjectReloadClient(page []byte) []byte {
	lower := bytes.ToLower(page)
	idx := bytes.LastIndex(lower, []byte("</body>"))
	if idx < 0 {
		return append(append([]byte(nil), page...), reloadClient...)
	}

	out := make([]byte, 0, len(page)+len(reloadClient))
	out = append(out, page[:idx]...)
	out = append(out, reloadClient...)
	out = append(out, page[idx:]...)
	return out
}

func (s *PreviewServer) staticHandler() http.Handler {
	root := http.Dir(s.root)
	files := http.FileServer(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")

		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		if !strings.EqualFold(path.Ext(name), ".html") {
			files.ServeHTTP(w, r)
			return
		}

		page, modTime, err := readPage(root, name)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, name, modTime, bytes.NewReader(InjectReloadClient(page)))
	})
}

func readPage(root http.FileSystem, name string) ([]byte, time.Time, error) {
	f, err := root.Open(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}
	if info.IsDir() {
		return nil, time.Time{}, fs.ErrNotExist
	}

	data, err := io.ReadAll(f)
	return data, info.ModTime(), err
}
