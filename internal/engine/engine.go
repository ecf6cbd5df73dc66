package engine

import (
	"log/slog"

	"github.com/picklr-io/converge/pkg/engineapi"
)

// Logger receives the reconciler's progress messages. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Engine drives declared containers toward convergence.
//
// A pass is sequential: every engine command blocks until it returns, and
// resources are handled one at a time.
type Engine struct {
	client          engineapi.Client
	log             Logger
	ContinueOnError bool // If true, apply continues past failures instead of stopping
}

func NewEngine(client engineapi.Client, log Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		client: client,
		log:    log,
	}
}
