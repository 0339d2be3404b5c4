package websocket

import "github.com/coder/websocket"

// ProtocolV7 is the LiveReload protocol spoken by the reload server.
const ProtocolV7 = "http://livereload.com/protocols/official-7"

// Command is a LiveReload protocol message.
type Command struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Hello returns the server greeting.
func Hello(serverName string) Command {
	return Command{
		Command:    "hello",
		Protocols:  []string{ProtocolV7},
		ServerName: serverName,
	}
}

// Reload returns a reload command for path.
func Reload(path string) Command {
	return Command{Command: "reload", Path: path, LiveCSS: true}
}

// Client represents a WebSocket client connection
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}
