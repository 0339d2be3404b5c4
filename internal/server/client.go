package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/conneroisu/assetwatch/internal/websocket"
)

// clientScript connects back to /livereload, completes the handshake and
// reloads the page on every reload command. Stylesheet changes swap the
// matching <link> in place instead.
const clientScript = `(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + %s + "/livereload";
  var retry = 1000;

  function swapStylesheet(path) {
    var name = path.split("/").pop();
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var swapped = false;
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.split("?")[0];
      if (href.split("/").pop() === name) {
        links[i].href = href + "?livereload=" + Date.now();
        swapped = true;
      }
    }
    return swapped;
  }

  function connect() {
    var socket = new WebSocket(url);
    socket.onopen = function () {
      retry = 1000;
      socket.send(JSON.stringify({command: "hello", protocols: [%s]}));
    };
    socket.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.command !== "reload") {
        return;
      }
      if (msg.liveCSS && /\.css$/.test(msg.path) && swapStylesheet(msg.path)) {
        return;
      }
      location.reload();
    };
    socket.onclose = function () {
      setTimeout(connect, retry);
      retry = Math.min(retry * 2, 30000);
    };
  }

  connect();
})();
`

// ClientScript returns the reload client for a server reachable at host.
func ClientScript(host string) string {
	return fmt.Sprintf(clientScript, strconv.Quote(host), strconv.Quote(websocket.ProtocolV7))
}

func (s *ReloadServer) handleClientScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(ClientScript(r.Host)))
}
