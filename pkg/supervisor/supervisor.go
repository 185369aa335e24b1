// Package supervisor implements C9 TopErrorHandler: a context-scoped
// top-level error sink that every pipeline goroutine reports into,
// driving an optional callback and a clean-then-forced shutdown chain.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/dlparker/palaver/pkg/logging"
)

// ErrNoHandler is returned by FromContext when ctx carries no Handler,
// ported from get_error_handler's "no TopErrorHandler set" RuntimeError.
var ErrNoHandler = errors.New("supervisor: no Handler set in this context")

// ErrorHandlingException wraps an error that occurred while the
// Handler itself was trying to report or shut down on an earlier
// error, ported from top_error.py's ErrorHandlingException.
type ErrorHandlingException struct {
	Original error
}

func (e *ErrorHandlingException) Error() string {
	return fmt.Sprintf("supervisor: error while handling error: %v", e.Original)
}

func (e *ErrorHandlingException) Unwrap() error { return e.Original }

// ErrorInfo is the record passed to callbacks and shutdown hooks.
type ErrorInfo struct {
	Err   error
	Label string
	Trace string
}

// Callback receives every top-level error report.
type Callback interface {
	OnError(info ErrorInfo) error
}

// CleanShutdown and ForcedShutdown are tried in order when a top-level
// error is reported: clean first, forced only if clean didn't succeed.
type CleanShutdown interface {
	Shutdown(message string) error
}

type ForcedShutdown interface {
	Shutdown(message string) error
}

// Handler is C9: the single top-level error sink for a running
// pipeline. It is carried through the component tree via context.Context
// rather than a global, so tests can run multiple independent pipelines
// concurrently.
type Handler struct {
	callback       Callback
	cleanShutdown  CleanShutdown
	forcedShutdown ForcedShutdown
	logger         logging.Logger

	mu      sync.Mutex
	info    *ErrorInfo
	handled bool
}

// New builds a Handler. Any of callback/clean/forced may be nil.
func New(callback Callback, clean CleanShutdown, forced ForcedShutdown, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{callback: callback, cleanShutdown: clean, forcedShutdown: forced, logger: logger}
}

type ctxKey struct{}

// WithHandler returns a context carrying h, mirroring top_error.py's
// ERROR_HANDLER contextvar.
func WithHandler(ctx context.Context, h *Handler) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// FromContext retrieves the Handler installed by WithHandler, or
// ErrNoHandler if ctx carries none (ported from get_error_handler).
func FromContext(ctx context.Context) (*Handler, error) {
	h, ok := ctx.Value(ctxKey{}).(*Handler)
	if !ok || h == nil {
		return nil, ErrNoHandler
	}
	return h, nil
}

// Run installs h on ctx and runs fn. If fn returns an error that
// HandleError never saw (i.e. no goroutine already reported and
// resolved it), Run escalates via PostLoopError, ported from
// TopErrorHandler.run/async_run.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	ctx = WithHandler(ctx, h)
	err := fn(ctx)

	h.mu.Lock()
	alreadyHandled := h.handled
	h.mu.Unlock()

	if err != nil && !alreadyHandled {
		return h.PostLoopError(ErrorInfo{Err: err})
	}
	return err
}

// WrapTask launches fn in its own goroutine under wg, reporting any
// returned error (and recovering any panic) to HandleError, ported
// from TopErrorHandler.wrap_task / _task_done_callback.
func (h *Handler) WrapTask(ctx context.Context, wg *sync.WaitGroup, label string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.HandleError(label, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
			}
		}()
		if err := fn(ctx); err != nil {
			h.HandleError(label, err)
		}
	}()
}

// HandleError reports a top-level error: it logs, then tries the
// callback, clean shutdown, and (only if clean didn't succeed) forced
// shutdown, continuing through every stage regardless of earlier
// failures. Ported from TopErrorHandler.handle_error.
func (h *Handler) HandleError(label string, err error) {
	info := ErrorInfo{Err: err, Label: label}

	h.mu.Lock()
	h.info = &info
	h.mu.Unlock()

	h.logger.Error("top-level error detected", "label", label, "err", err)

	if h.callback != nil {
		if cbErr := h.callback.OnError(info); cbErr == nil {
			h.markHandled()
		} else {
			h.logger.Error("top-level callback raised", "err", cbErr)
		}
	}

	cleanDone := false
	if h.cleanShutdown != nil {
		if sErr := h.cleanShutdown.Shutdown(fmt.Sprintf("on error: %v", err)); sErr == nil {
			h.markHandled()
			cleanDone = true
		} else {
			h.logger.Error("clean shutdown raised", "err", sErr)
		}
	}

	if !cleanDone && h.forcedShutdown != nil {
		if sErr := h.forcedShutdown.Shutdown(fmt.Sprintf("on error: %v", err)); sErr == nil {
			h.markHandled()
		} else {
			h.logger.Error("forced shutdown raised", "err", sErr)
		}
	}
}

// PostLoopError mirrors TopErrorHandler.post_loop_error: unlike
// HandleError, it aborts at the first stage that itself fails,
// returning an ErrorHandlingException rather than trying the remaining
// stages. This asymmetry (lenient async path, strict post-loop path)
// is intentional and ported as-is.
func (h *Handler) PostLoopError(info ErrorInfo) error {
	h.logger.Error("unhandled top-level error after main loop exit", "err", info.Err)

	if h.callback != nil {
		if cbErr := h.callback.OnError(info); cbErr != nil {
			h.logger.Error("top-level callback raised", "err", cbErr)
			return &ErrorHandlingException{Original: info.Err}
		}
	}

	cleanDone := false
	if h.cleanShutdown != nil {
		if sErr := h.cleanShutdown.Shutdown(fmt.Sprintf("on error: %v", info.Err)); sErr != nil {
			h.logger.Error("clean shutdown raised", "err", sErr)
			return &ErrorHandlingException{Original: info.Err}
		}
		cleanDone = true
	}

	if !cleanDone && h.forcedShutdown != nil {
		if sErr := h.forcedShutdown.Shutdown(fmt.Sprintf("on error: %v", info.Err)); sErr != nil {
			h.logger.Error("forced shutdown raised", "err", sErr)
			return &ErrorHandlingException{Original: info.Err}
		}
	}
	return nil
}

func (h *Handler) markHandled() {
	h.mu.Lock()
	h.handled = true
	h.mu.Unlock()
}

// Handled reports whether any reported error has been successfully
// resolved by a callback or shutdown hook.
func (h *Handler) Handled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled
}

// LastError returns the most recently reported error, if any.
func (h *Handler) LastError() (ErrorInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.info == nil {
		return ErrorInfo{}, false
	}
	return *h.info, true
}
