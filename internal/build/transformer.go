package build

import (
	"context"
	"time"

	"github.com/conneroisu/assetwatch/internal/errors"
	"github.com/conneroisu/assetwatch/internal/logging"
	"github.com/conneroisu/assetwatch/internal/paths"
)

// Class identifies an asset class.
type Class string

const (
	ClassTemplate   Class = "template"
	ClassStylesheet Class = "stylesheet"
	ClassScript     Class = "script"
)

// Classes lists every asset class in dispatch order.
var Classes = []Class{ClassTemplate, ClassStylesheet, ClassScript}

type classInfo struct {
	ext   string
	async bool
	verb  string
}

var classInfos = map[Class]classInfo{
	ClassTemplate:   {ext: ".html", async: false, verb: "Rendering template"},
	ClassStylesheet: {ext: ".css", async: true, verb: "Compiling stylesheet"},
	ClassScript:     {ext: ".js", async: true, verb: "Transpiling script"},
}

// OutputExt returns the destination extension for class.
func OutputExt(class Class) string {
	return classInfos[class].ext
}

// Sink receives compiled output.
type Sink interface {
	Root() string
	Write(ctx context.Context, dest string, content []byte) error
}

// Result describes one finished transform.
type Result struct {
	Class       Class
	Source      string
	Destination string
	Err         error
	Duration    time.Duration
}

// Transformer is the read-compile-write pipeline for one asset class.
type Transformer struct {
	class    Class
	info     classInfo
	compiler Compiler
	sink     Sink
	metrics  *Metrics
	logger   logging.Logger
}

// NewTransformer creates a transformer for class. metrics may be nil.
func NewTransformer(class Class, compiler Compiler, sink Sink, metrics *Metrics, logger logging.Logger) *Transformer {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Transformer{
		class:    class,
		info:     classInfos[class],
		compiler: compiler,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.WithComponent(string(class)),
	}
}

// Class returns the asset class handled by t.
func (t *Transformer) Class() Class {
	return t.class
}

// Run transforms source. Template transforms finish before Run returns;
// stylesheet and script transforms compile on their own goroutine and write
// only once compilation completes. The returned channel yields exactly one
// Result and is then closed.
func (t *Transformer) Run(ctx context.Context, source string) <-chan Result {
	done := make(chan Result, 1)
	dest := paths.MapDestination(source, t.sink.Root(), t.info.ext)

	t.logger.Info(ctx, t.info.verb, "source", source, "destination", dest)

	if !t.info.async {
		done <- t.run(ctx, source, dest)
		close(done)
		return done
	}

	go func() {
		defer close(done)
		done <- t.run(ctx, source, dest)
	}()

	return done
}

func (t *Transformer) run(ctx context.Context, source, dest string) Result {
	start := time.Now()
	result := Result{Class: t.class, Source: source, Destination: dest}

	out, err := t.compiler.Compile(ctx, source)
	if err != nil {
		result.Err = errors.NewCompileError(source, err)
		t.logger.Error(ctx, err, "Unable to process "+string(t.class), "source", source)
	} else if err := t.sink.Write(ctx, dest, out); err != nil {
		// The sink already logged the destination and cause.
		result.Err = err
	}

	result.Duration = time.Since(start)
	if t.metrics != nil {
		t.metrics.Record(result)
	}

	return result
}
