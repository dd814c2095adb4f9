package errors

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
)

// Recoverer is implemented by the recovery manager. It is an interface
// here to keep the dependency direction: recovery imports errors, never
// the reverse.
type Recoverer interface {
	// Recover attempts recovery for a classified error within operation.
	// It returns a human summary and whether recovery succeeded.
	Recover(ctx context.Context, tag Tag, operation string, cause error) (string, bool)
}

// HandleResult is the handler's decision for one error.
type HandleResult struct {
	Classification Classification
	Recovered      bool
	RecoveryNote   string
	// Retry reports that the caller should retry the failed operation.
	Retry bool
	// Message is the user-facing rendering.
	Message string
}

// Handler classifies errors, dispatches recovery and owns process-wide
// failure hooks. One Handler exists per CLI invocation.
type Handler struct {
	mu        sync.Mutex
	counts    map[Tag]int
	recoverer Recoverer
	out       io.Writer

	cleanupMu sync.Mutex
	cleanups  []func()

	// retries tracks per-operation retry counts; cleared on success.
	retryMu    sync.Mutex
	retries    map[string]int
	maxRetries int
}

// NewHandler builds a Handler writing user messages to out. recoverer may
// be nil, in which case recoverable errors surface without recovery.
func NewHandler(out io.Writer, recoverer Recoverer) *Handler {
	if out == nil {
		out = os.Stderr
	}
	return &Handler{
		counts:     map[Tag]int{},
		recoverer:  recoverer,
		out:        out,
		retries:    map[string]int{},
		maxRetries: 3,
	}
}

// SetRecoverer wires the recovery manager after construction.
func (h *Handler) SetRecoverer(r Recoverer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recoverer = r
}

// Handle classifies err, records it, dispatches recovery when allowed and
// returns the decision. operation names the failed operation for the
// retry counter and recovery context.
func (h *Handler) Handle(ctx context.Context, operation string, err error) HandleResult {
	cls := Classify(err)
	h.record(cls.Tag)

	res := HandleResult{Classification: cls}

	switch cls.Severity {
	case SeverityWarning:
		res.Message = fmt.Sprintf("警告 [%s]: %v", cls.Tag, err)
		return res

	case SeverityCritical:
		res.Message = h.render(cls.Tag, err)
		return res

	case SeverityRecoverable:
		if h.recoverer == nil {
			res.Message = h.render(cls.Tag, err)
			return res
		}
		if !h.allowRetry(operation) {
			res.Message = h.render(cls.Tag, err) + "\nリトライ上限に達しました。上記の手順で手動対応してください。"
			return res
		}
		note, ok := h.recoverer.Recover(ctx, cls.Tag, operation, err)
		res.RecoveryNote = note
		res.Recovered = ok
		res.Retry = ok
		if ok {
			res.Message = fmt.Sprintf("[%s] 自動復旧しました: %s", cls.Tag, note)
		} else {
			res.Message = h.render(cls.Tag, err)
			if note != "" {
				res.Message += "\n復旧試行: " + note
			}
		}
		return res

	default:
		res.Message = fmt.Sprintf("[%s] 予期しないエラー: %v\nログを確認してください: .teamflow/logs/team-flow.log", TagUnknown, err)
		return res
	}
}

// ClearRetries resets the retry counter for operation after success.
func (h *Handler) ClearRetries(operation string) {
	h.retryMu.Lock()
	defer h.retryMu.Unlock()
	delete(h.retries, operation)
}

func (h *Handler) allowRetry(operation string) bool {
	h.retryMu.Lock()
	defer h.retryMu.Unlock()
	if h.retries[operation] >= h.maxRetries {
		delete(h.retries, operation)
		return false
	}
	h.retries[operation]++
	return true
}

func (h *Handler) render(tag Tag, err error) string {
	var fe *FlowError
	if As(err, &fe) {
		return fe.UserMessage()
	}
	msg := fmt.Sprintf("[%s] %v", tag, err)
	if fix := Remediation(tag); fix != "" {
		msg += "\n対処:\n" + fix
	}
	return msg
}

func (h *Handler) record(tag Tag) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[tag]++
}

// Counts returns a copy of the per-tag classification counters.
func (h *Handler) Counts() map[Tag]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[Tag]int, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}

// CountsReport renders the counters sorted by tag for diagnostics.
func (h *Handler) CountsReport() string {
	counts := h.Counts()
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	var b []byte
	for _, tag := range tags {
		b = fmt.Appendf(b, "%s: %d\n", tag, counts[Tag(tag)])
	}
	return string(b)
}

// RegisterCleanup registers a callback run on graceful shutdown, in
// registration order.
func (h *Handler) RegisterCleanup(fn func()) {
	h.cleanupMu.Lock()
	defer h.cleanupMu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

func (h *Handler) runCleanups() {
	h.cleanupMu.Lock()
	fns := make([]func(), len(h.cleanups))
	copy(fns, h.cleanups)
	h.cleanupMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// InstallSignalHandler returns a context cancelled on SIGINT/SIGTERM. The
// first signal starts a graceful shutdown: the context is cancelled so
// in-flight operations drain, then cleanups run and the process exits 0.
// A second signal forces exit 1.
func (h *Handler) InstallSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Fprintf(h.out, "\n%s を受信しました。終了処理を実行します...\n", sig)
		cancel()
		go func() {
			<-sigCh
			os.Exit(1)
		}()
		h.runCleanups()
		os.Exit(0)
	}()

	return ctx, cancel
}

// Fatal emits a structured report for an unhandled failure, runs cleanups
// and exits 1.
func (h *Handler) Fatal(err error) {
	cls := Classify(err)
	h.record(cls.Tag)
	fmt.Fprintln(h.out, h.render(cls.Tag, err))
	h.runCleanups()
	os.Exit(1)
}
