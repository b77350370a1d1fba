package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/pkg/souper"
)

// Browser is the part of *souper.Bridge a script drives.
type Browser interface {
	Goto(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	FindElementsByCSSSelector(ctx context.Context, selector string) ([]*souper.Handle, error)
	FindElementsByID(ctx context.Context, id string) ([]*souper.Handle, error)
	FindElementsByText(ctx context.Context, text string) ([]*souper.Handle, error)
	FindElementsByPartialText(ctx context.Context, text string) ([]*souper.Handle, error)
}

var _ Browser = (*souper.Bridge)(nil)

// Runner executes scripts against one Browser.
type Runner struct {
	browser       Browser
	in            *bufio.Reader
	out           io.Writer
	screenshotDir string
	logger        *zap.Logger
}

// RunnerConfig wires a Runner's I/O. In feeds pause steps; Out receives their
// prompts. Relative screenshot paths are written under ScreenshotDir.
type RunnerConfig struct {
	In            io.Reader
	Out           io.Writer
	ScreenshotDir string
	Logger        *zap.Logger
}

// NewRunner creates a Runner. Missing I/O falls back to stdin and stdout.
func NewRunner(b Browser, cfg RunnerConfig) *Runner {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{
		browser:       b,
		in:            bufio.NewReader(cfg.In),
		out:           cfg.Out,
		screenshotDir: cfg.ScreenshotDir,
		logger:        cfg.Logger.Named("script"),
	}
}

// StepResult records one executed step.
type StepResult struct {
	Index    int
	Action   Action
	Detail   string
	Duration time.Duration
}

// Run executes s step by step and stops at the first failure. The results of
// the steps that completed are returned either way.
func (r *Runner) Run(ctx context.Context, s *Script) ([]StepResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("script", s.Name))
	logger.Info("Running script", zap.Int("steps", len(s.Steps)))

	st := &state{handles: make(map[string]*souper.Handle)}
	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		action, _ := step.Action()
		start := time.Now()

		detail, err := r.runStep(ctx, st, action, step)
		if err != nil {
			logger.Warn("Step failed", zap.Int("step", i+1), zap.String("action", string(action)), zap.Error(err))
			return results, fmt.Errorf("step %d (%s): %w", i+1, action, err)
		}

		res := StepResult{Index: i + 1, Action: action, Detail: detail, Duration: time.Since(start)}
		results = append(results, res)
		logger.Debug("Step completed",
			zap.Int("step", res.Index),
			zap.String("action", string(action)),
			zap.String("detail", detail),
			zap.Duration("duration", res.Duration))
	}
	logger.Info("Script finished", zap.Int("steps", len(results)))
	return results, nil
}

type state struct {
	handles map[string]*souper.Handle
}

func (st *state) handle(name string) (*souper.Handle, error) {
	if name == "" {
		name = LastFound
	}
	h, ok := st.handles[name]
	if !ok {
		return nil, fmt.Errorf("%w: no element named %q has been found", ErrInvalidScript, name)
	}
	return h, nil
}

func (r *Runner) runStep(ctx context.Context, st *state, action Action, step Step) (string, error) {
	switch action {
	case ActionGoto:
		if err := r.browser.Goto(ctx, step.Goto); err != nil {
			return "", err
		}
		return step.Goto, nil

	case ActionFind:
		return r.find(ctx, st, step.Find)

	case ActionExpectAbsent:
		handles, err := r.lookup(ctx, step.ExpectAbsent)
		if err != nil {
			return "", err
		}
		if len(handles) > 0 {
			return "", fmt.Errorf("expected no element for %s, found %d (first: %s)",
				step.ExpectAbsent, len(handles), handles[0])
		}
		return step.ExpectAbsent.String() + " absent", nil

	case ActionSendKeys:
		h, err := st.handle(step.SendKeys.Into)
		if err != nil {
			return "", err
		}
		return h.String(), h.SendKeys(ctx, step.SendKeys.Text)

	case ActionSubmit:
		h, err := st.handle(step.Submit)
		if err != nil {
			return "", err
		}
		return h.String(), h.Submit(ctx)

	case ActionClick:
		h, err := st.handle(step.Click)
		if err != nil {
			return "", err
		}
		return h.String(), h.Click(ctx)

	case ActionPause:
		if sel := step.Pause.IfPresent; sel != nil {
			handles, err := r.lookup(ctx, sel)
			if err != nil {
				return "", err
			}
			if len(handles) == 0 {
				return "skipped, " + sel.String() + " not present", nil
			}
		}
		return step.Pause.Message, r.pause(ctx, step.Pause.Message)

	case ActionScreenshot:
		return r.screenshot(ctx, step.Screenshot)
	}
	return "", fmt.Errorf("%w: unsupported action %q", ErrInvalidScript, action)
}

func (r *Runner) lookup(ctx context.Context, sel *Selector) ([]*souper.Handle, error) {
	switch {
	case sel.CSS != "":
		return r.browser.FindElementsByCSSSelector(ctx, sel.CSS)
	case sel.ID != "":
		return r.browser.FindElementsByID(ctx, sel.ID)
	case sel.Text != "":
		return r.browser.FindElementsByText(ctx, sel.Text)
	default:
		return r.browser.FindElementsByPartialText(ctx, sel.PartialText)
	}
}

func (r *Runner) find(ctx context.Context, st *state, sel *Selector) (string, error) {
	name := sel.As
	if name == "" {
		name = LastFound
	}
	handles, err := r.lookup(ctx, sel)
	if err != nil {
		return "", err
	}
	if len(handles) == 0 {
		delete(st.handles, name)
		if sel.Optional {
			return sel.String() + " not present", nil
		}
		return "", fmt.Errorf("%w: no element for %s", souper.ErrNotFound, sel)
	}
	st.handles[name] = handles[0]
	if name != LastFound {
		st.handles[LastFound] = handles[0]
	}
	return handles[0].String(), nil
}

// pause prints message and waits for a line on the runner's input. A closed
// input ends the pause.
func (r *Runner) pause(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u, err := r.browser.CurrentURL(ctx); err == nil {
		fmt.Fprintf(r.out, "[%s] ", u)
	}
	fmt.Fprintf(r.out, "%s (press Enter to continue)\n", message)

	if _, err := r.in.ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			r.logger.Warn("Pause input closed, continuing", zap.String("message", message))
			return nil
		}
		return fmt.Errorf("reading pause input: %w", err)
	}
	return nil
}

func (r *Runner) screenshot(ctx context.Context, path string) (string, error) {
	png, err := r.browser.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && r.screenshotDir != "" {
		path = filepath.Join(r.screenshotDir, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
