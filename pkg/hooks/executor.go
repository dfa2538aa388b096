package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/settree/pkg/debug"
)

// Result is the outcome of one hook run.
type Result struct {
	Hook     Hook
	Phase    Phase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs the hooks of one save.
type Executor struct {
	config  *Config
	save    SaveContext
	results []Result
}

// NewExecutor creates an executor for one save.
func NewExecutor(config *Config, save SaveContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, save: save}
}

// RunPreSave runs pre-save hooks in order and stops at the first failing
// hook whose on_error is "fail".
func (e *Executor) RunPreSave(ctx context.Context) error {
	for _, h := range e.config.Hooks.PreSave {
		r := e.run(ctx, h, PreSave)
		if !r.Success && h.OnError != OnErrorContinue {
			return fmt.Errorf("pre-save hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostSave runs every post-save hook. The returned error joins the
// failures of hooks whose on_error is "fail".
func (e *Executor) RunPostSave(ctx context.Context) error {
	var errs []error
	for _, h := range e.config.Hooks.PostSave {
		r := e.run(ctx, h, PostSave)
		if !r.Success && h.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-save hook %q failed: %w", h.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(ctx context.Context, h Hook, phase Phase) Result {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), e.save.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v", timeout)
		}
		r.Error = err
		debug.Warn("hooks: %s %q: %v (%s)", phase, h.Name, err, truncate(r.Stderr, 200))
	} else {
		debug.Log("hooks: %s %q ok in %v", phase, h.Name, r.Duration)
	}
	e.results = append(e.results, r)
	return r
}

// Results returns the results of every hook run so far.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs in one line, naming failed hooks.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok int
	var failed []string
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		msg := r.Hook.Name
		if r.Stderr != "" {
			msg += ": " + truncate(r.Stderr, 60)
		}
		failed = append(failed, msg)
	}
	s := fmt.Sprintf("hooks: %d succeeded, %d failed", ok, len(failed))
	if len(failed) > 0 {
		s += " (" + strings.Join(failed, "; ") + ")"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
