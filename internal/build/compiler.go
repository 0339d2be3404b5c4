// Package build turns source assets into browser-ready output. Each asset
// class has a Compiler; a Transformer wraps a Compiler with destination
// mapping, logging and the output writer.
package build

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Joker/jade"
	"github.com/evanw/esbuild/pkg/api"
)

// Compiler converts one source file into output text.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source string) ([]byte, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// JadeCompiler renders Jade/Pug templates to HTML. The template is converted
// to an html/template and executed with Data. Pretty re-indents the result.
type JadeCompiler struct {
	Data   interface{}
	Pretty bool
}

// NewJadeCompiler creates a pretty-printing template compiler with no
// render data.
func NewJadeCompiler() *JadeCompiler {
	return &JadeCompiler{Pretty: true}
}

// Compile renders source. Includes and extends are resolved relative to the
// source file by the template engine.
func (jc *JadeCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := jade.ParseFile(source)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	tpl, err := template.New(filepath.Base(source)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, jc.Data); err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}
	if !jc.Pretty {
		return buf.Bytes(), nil
	}

	out, err := IndentHTML(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting template: %w", err)
	}

	return out, nil
}

// SassCompiler compiles SCSS/Sass by running the dart-sass command line tool.
type SassCompiler struct {
	command      string
	includePaths []string

	resolveOnce sync.Once
	resolved    string
	resolveErr  error
}

// NewSassCompiler creates a stylesheet compiler. includePaths are passed as
// additional load paths so framework partials resolve.
func NewSassCompiler(command string, includePaths []string) *SassCompiler {
	if command == "" {
		command = "sass"
	}

	return &SassCompiler{
		command:      command,
		includePaths: append([]string(nil), includePaths...),
	}
}

// Args returns the arguments passed to the sass binary for source.
func (sc *SassCompiler) Args(source string) []string {
	args := []string{"--no-source-map", "--no-color"}
	for _, p := range sc.includePaths {
		args = append(args, "--load-path="+p)
	}

	return append(args, source)
}

// Compile runs sass and returns its stdout. Sass diagnostics on stderr become
// the error message.
func (sc *SassCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	bin, err := sc.binary()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bin, sc.Args(source)...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sass cancelled: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("sass failed: %w", err)
		}
		return nil, fmt.Errorf("sass failed: %w\n%s", err, msg)
	}

	return stdout.Bytes(), nil
}

func (sc *SassCompiler) binary() (string, error) {
	sc.resolveOnce.Do(func() {
		sc.resolved, sc.resolveErr = exec.LookPath(sc.command)
		if sc.resolveErr != nil {
			sc.resolveErr = fmt.Errorf("%s not found (install dart-sass or set sass.binary): %w", sc.command, sc.resolveErr)
		}
	})

	return sc.resolved, sc.resolveErr
}

// ScriptCompiler transpiles modern JavaScript and JSX down to ES2015 with
// esbuild. It stands in for the es2015 + react preset chain.
type ScriptCompiler struct {
	Target api.Target
}

// NewScriptCompiler creates a script compiler targeting ES2015.
func NewScriptCompiler() *ScriptCompiler {
	return &ScriptCompiler{Target: api.ES2015}
}

// LoaderFor picks the esbuild loader from the file extension.
func LoaderFor(source string) api.Loader {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		// Plain .js files may still contain JSX under the react preset.
		return api.LoaderJSX
	}
}

// Compile transpiles source.
func (sc *ScriptCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	code, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Transform(string(code), api.TransformOptions{
		Loader:     LoaderFor(source),
		Target:     sc.Target,
		Sourcefile: source,
		JSX:        api.JSXTransform,
		Charset:    api.CharsetUTF8,
	})
	if len(result.Errors) > 0 {
		return nil, formatMessages(result.Errors)
	}

	return result.Code, nil
}

func formatMessages(msgs []api.Message) error {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}

	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}
