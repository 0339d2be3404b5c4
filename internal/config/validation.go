package config

import (
	"fmt"

	"github.com/conneroisu/assetwatch/internal/errors"
	"github.com/conneroisu/assetwatch/internal/logging"
)

// Messages reported for missing required paths.
const (
	MsgNoStyles      = "no css path provided"
	MsgNoTemplates   = "no template path provided"
	MsgNoDestination = "no destination path provided"
)

// Validate checks cfg and returns every failure found. Required paths are
// checked independently, so each missing one gets its own entry.
func Validate(cfg *Config) errors.ValidationErrors {
	var errs errors.ValidationErrors

	if cfg.Styles == "" {
		errs.Add(errors.CodeMissingFlag, MsgNoStyles)
	}
	if cfg.Templates == "" {
		errs.Add(errors.CodeMissingFlag, MsgNoTemplates)
	}
	if cfg.Destination == "" {
		errs.Add(errors.CodeMissingFlag, MsgNoDestination)
	}

	if cfg.Reload.Enabled {
		// 0 picks an ephemeral port.
		if cfg.Reload.Port < 0 || cfg.Reload.Port > 65535 {
			errs.Add(errors.CodeInvalidValue, fmt.Sprintf("reload port %d out of range (0-65535)", cfg.Reload.Port))
		}
		if cfg.Reload.Debounce < 0 {
			errs.Add(errors.CodeInvalidValue, fmt.Sprintf("reload debounce %s must not be negative", cfg.Reload.Debounce))
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.Add(errors.CodeInvalidValue, err.Error())
	}

	switch cfg.Log.Format {
	case "", "console", "text", "json":
	default:
		errs.Add(errors.CodeInvalidValue, fmt.Sprintf("unknown log format %q (expected console, text, json)", cfg.Log.Format))
	}

	return errs
}
