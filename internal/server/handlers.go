// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"
)

// handleWebSocket upgrades a GET request and hands the connection to the hub
// as a line client: each text frame carries one or more lines.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(newWSConn(conn, r.RemoteAddr, s.cfg.MaxLineLength), s.hub, s.registry, s.cfg, s.metrics, s.log)
	if err := s.hub.Register(client); err != nil {
		s.log.Debug("refusing WebSocket client", "addr", r.RemoteAddr, "error", err)
		client.closeConnection()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linechat server is running!")
}

// TestPageHandler serves an HTML page that speaks the line protocol over the
// WebSocket endpoint.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>linechat</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #lines {
            border: 1px solid #ccc;
            height: 360px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            white-space: pre-wrap;
        }
        input[type="text"] { width: 400px; padding: 5px; margin-right: 10px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .reply { color: gray; }
        .sent { color: blue; }
    </style>
</head>
<body>
    <h1>linechat</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div>
        <input type="text" id="input" placeholder="/nick alice, /join room, or a message" disabled>
        <button id="connect" onclick="toggleConnection()">Connect</button>
    </div>
    <div id="lines"></div>

    <script>
        let ws = null;
        const linesDiv = document.getElementById('lines');
        const input = document.getElementById('input');
        const connectButton = document.getElementById('connect');
        const statusDiv = document.getElementById('status');

        function addLine(text, cls) {
            const el = document.createElement('div');
            el.textContent = text;
            if (cls) { el.className = cls; }
            linesDiv.appendChild(el);
            linesDiv.scrollTop = linesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            input.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => updateStatus(true);
            ws.onmessage = (event) => {
                for (const line of event.data.split('\n')) {
                    addLine(line, line.startsWith('-- ') ? 'reply' : '');
                }
            };
            ws.onclose = () => { updateStatus(false); ws = null; };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        input.addEventListener('keypress', (e) => {
            if (e.key !== 'Enter' || !input.value || !ws) { return; }
            ws.send(input.value);
            addLine('> ' + input.value, 'sent');
            input.value = '';
        });
    </script>
</body>
</html>`
