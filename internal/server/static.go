package server

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ClientScriptPath is where the reload client is served.
const ClientScriptPath = "/livereload.js"

// staticHandler serves the destination tree. HTML documents get the reload
// client appended to their body.
func (s *ReloadServer) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.opts.Root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		full := filepath.Join(s.opts.Root, filepath.FromSlash(name))

		info, err := os.Stat(full)
		if err == nil && info.IsDir() {
			full = filepath.Join(full, "index.html")
			if !strings.HasSuffix(r.URL.Path, "/") {
				// Let the file server issue the trailing-slash redirect.
				files.ServeHTTP(w, r)
				return
			}
		}

		if !isHTML(full) {
			files.ServeHTTP(w, r)
			return
		}

		content, err := os.ReadFile(full)
		if err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			s.logger.Warn(r.Context(), err, "Unable to read file", "path", full)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		injected, err := InjectScript(content, ClientScriptPath)
		if err != nil {
			s.logger.Warn(r.Context(), err, "Unable to inject reload client", "path", full)
			injected = content
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(injected)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(injected)
	})
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}

	return false
}

// InjectScript parses document and appends a script element loading src as
// the last child of <body>. Documents that already reference src are
// returned unchanged.
func InjectScript(document []byte, src string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("document has no body")
	}

	if hasScript(doc, src) {
		return document, nil
	}

	body.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "src", Val: src}},
	})

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("rendering document: %w", err)
	}

	return out.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}

	return nil
}

func hasScript(n *html.Node, src string) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, attr := range n.Attr {
			if attr.Key == "src" && attr.Val == src {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasScript(c, src) {
			return true
		}
	}

	return false
}
