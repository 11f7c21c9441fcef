package fuzzy

import (
	"fmt"
	"io"
	"os"
	"strings"

	fzf "github.com/junegunn/fzf/src"
)

// optionSeparator divides value and description in the fzf candidate list.
const optionSeparator = "  │  "

// FzfRunner runs a parsed fzf invocation. It exists so tests can replace
// the real fzf event loop.
type FzfRunner interface {
	Run(opts *fzf.Options) (int, error)
}

// DefaultFzfRunner executes the real fzf library.
type DefaultFzfRunner struct{}

// Run executes fzf with the given options.
func (r *DefaultFzfRunner) Run(opts *fzf.Options) (int, error) {
	return fzf.Run(opts)
}

// FzfFinder selects one option through the embedded fzf library.
type FzfFinder struct {
	options []Option
	prompt  string
	runner  FzfRunner
}

// NewFzf creates an fzf-backed finder.
func NewFzf(prompt string) *FzfFinder {
	return &FzfFinder{
		prompt: prompt,
		runner: &DefaultFzfRunner{},
	}
}

// NewFzfWithRunner creates an fzf-backed finder with a custom runner.
func NewFzfWithRunner(prompt string, runner FzfRunner) *FzfFinder {
	return &FzfFinder{
		prompt: prompt,
		runner: runner,
	}
}

// SetOptions replaces the candidate list.
func (f *FzfFinder) SetOptions(options []Option) error {
	if options == nil {
		return fmt.Errorf("options cannot be nil")
	}

	f.options = make([]Option, len(options))
	copy(f.options, options)
	return nil
}

// SetPrompt updates the prompt shown in the fzf header.
func (f *FzfFinder) SetPrompt(prompt string) {
	f.prompt = prompt
}

// Select runs fzf over the configured options. The fzf library reads
// candidates from stdin and prints the selection to stdout, so both
// streams are swapped for the duration of the run. When fzf itself fails
// the plain finder takes over.
func (f *FzfFinder) Select() (string, error) {
	if len(f.options) == 0 {
		return "", fmt.Errorf("no options available")
	}

	candidates, err := os.CreateTemp("", "fuzzy-candidates-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create candidate file: %w", err)
	}
	defer func() {
		_ = candidates.Close()
		_ = os.Remove(candidates.Name())
	}()

	for _, option := range f.options {
		line := option.Value
		if option.Description != "" {
			line = option.Value + optionSeparator + option.Description
		}
		if _, err := fmt.Fprintln(candidates, line); err != nil {
			return "", fmt.Errorf("failed to write candidate: %w", err)
		}
	}
	if _, err := candidates.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind candidate file: %w", err)
	}

	args := []string{
		"--prompt=" + f.prompt + " ",
		"--height=10",
		"--layout=default",
		"--no-multi",
		"--cycle",
		"--hscroll",
		"--hscroll-off=10",
		"--tabstop=8",
		"--clear",
		"--extended",
		"--algo=v2",
		"--tiebreak=length",
		"--sort=1000",
		"--no-mouse",
		"--no-reverse",
		"--border=none",
	}

	opts, err := fzf.ParseOptions(true, args)
	if err != nil {
		return "", fmt.Errorf("failed to parse fzf options: %w", err)
	}

	originalStdin := os.Stdin
	originalStdout := os.Stdout
	defer func() {
		os.Stdin = originalStdin
		os.Stdout = originalStdout
	}()

	r, w, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("failed to create pipe: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	os.Stdin = candidates
	os.Stdout = w

	exitCode, runErr := f.runner.Run(opts)

	// Restore stdout and close the write end before draining the pipe.
	_ = w.Close()
	os.Stdout = originalStdout
	os.Stdin = originalStdin

	if runErr != nil {
		return f.fallbackSelect()
	}
	if exitCode != fzf.ExitOk {
		return "", fmt.Errorf("fzf selection cancelled or failed")
	}

	result, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read fzf result: %w", err)
	}

	selected := strings.TrimSpace(string(result))
	if selected == "" {
		return "", fmt.Errorf("no selection made")
	}

	// The candidate line is "value  │  description", keep only the value.
	value := strings.TrimSpace(strings.SplitN(selected, optionSeparator, 2)[0])
	for _, option := range f.options {
		if option.Value == value {
			return option.Value, nil
		}
	}

	return value, nil
}

// fallbackSelect hands the options to the plain finder.
func (f *FzfFinder) fallbackSelect() (string, error) {
	finder := New(f.prompt)
	for _, option := range f.options {
		finder.AddOption(option.Value, option.Description)
	}
	return finder.SelectWithFilter()
}

// FzfFinderInterface is the selection seam used by the command layer.
type FzfFinderInterface interface {
	SetOptions(options []Option) error
	SetPrompt(prompt string)
	Select() (string, error)
}

var _ FzfFinderInterface = (*FzfFinder)(nil)
