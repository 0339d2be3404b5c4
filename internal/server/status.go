package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/assetwatch/internal/build"
	"github.com/conneroisu/assetwatch/internal/version"
)

// StatusData is what the status page shows.
type StatusData struct {
	Version string
	Root    string
	Clients int
	Uptime  time.Duration
	Globs   []Glob
	Metrics map[build.Class]build.ClassMetrics
}

// StatusPage renders data as a standalone HTML page.
func StatusPage(data StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		// Casers are stateful; one per render.
		titleCase := cases.Title(language.English)

		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>assetwatch status</title>`)
		p.printf(`<style>body{font-family:sans-serif;margin:2rem}table{border-collapse:collapse}td,th{padding:.25rem .75rem;text-align:left}.failed{color:#b00}</style>`)
		p.printf(`</head><body><h1>assetwatch %s</h1>`, templ.EscapeString(data.Version))
		p.printf(`<p>Destination <code>%s</code>, %d connected client(s), up %s.</p>`,
			templ.EscapeString(data.Root), data.Clients, data.Uptime.Truncate(time.Second))

		p.printf(`<h2>Watched globs</h2><table><tr><th>Class</th><th>Pattern</th></tr>`)
		for _, g := range data.Globs {
			pattern := g.Pattern
			if pattern == "" {
				pattern = "(none)"
			}
			p.printf(`<tr><td>%s</td><td><code>%s</code></td></tr>`,
				templ.EscapeString(titleCase.String(string(g.Class))), templ.EscapeString(pattern))
		}
		p.printf(`</table>`)

		p.printf(`<h2>Transforms</h2><table><tr><th>Class</th><th>Total</th><th>Failed</th><th>Average</th><th>Last source</th><th>Last error</th></tr>`)
		for _, class := range sortedClasses(data.Metrics) {
			m := data.Metrics[class]
			row := ""
			if m.LastError != "" {
				row = ` class="failed"`
			}
			p.printf(`<tr%s><td>%s</td><td>%d</td><td>%d</td><td>%s</td><td><code>%s</code></td><td>%s</td></tr>`,
				row,
				templ.EscapeString(titleCase.String(string(class))),
				m.Total, m.Failed, m.AverageDuration(),
				templ.EscapeString(m.LastSource), templ.EscapeString(m.LastError))
		}
		p.printf(`</table><script src="%s"></script></body></html>`, ClientScriptPath)

		return p.err
	})
}

type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func sortedClasses(metrics map[build.Class]build.ClassMetrics) []build.Class {
	classes := make([]build.Class, 0, len(metrics))
	for class := range metrics {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	return classes
}

func (s *ReloadServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.serverMutex.RLock()
	startedAt := s.startedAt
	s.serverMutex.RUnlock()

	var uptime time.Duration
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	data := StatusData{
		Version: version.GetShortVersion(),
		Root:    s.opts.Root,
		Clients: s.manager.ClientCount(),
		Uptime:  uptime,
		Globs:   s.opts.Globs,
		Metrics: s.metrics.Snapshot(),
	}

	templ.Handler(StatusPage(data)).ServeHTTP(w, r)
}
