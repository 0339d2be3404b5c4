package build

import "github.com/conneroisu/assetwatch/internal/logging"

// Options configures the default compilers.
type Options struct {
	// SassBinary is the dart-sass executable, "sass" when empty.
	SassBinary string
	// IncludePaths are extra stylesheet load paths (framework partials).
	IncludePaths []string
}

// Set holds one transformer per asset class.
type Set map[Class]*Transformer

// NewSet wires the default compilers for every class to sink.
func NewSet(opts Options, sink Sink, metrics *Metrics, logger logging.Logger) Set {
	compilers := map[Class]Compiler{
		ClassTemplate:   NewJadeCompiler(),
		ClassStylesheet: NewSassCompiler(opts.SassBinary, opts.IncludePaths),
		ClassScript:     NewScriptCompiler(),
	}

	set := make(Set, len(compilers))
	for class, compiler := range compilers {
		set[class] = NewTransformer(class, compiler, sink, metrics, logger)
	}

	return set
}
