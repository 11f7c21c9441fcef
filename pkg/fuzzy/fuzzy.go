// Package fuzzy implements the interactive pickers used when a command
// needs exactly one organization and none was named on the command line.
// Selection is backed by the fzf library when the session is interactive
// and falls back to a plain numbered prompt otherwise.
package fuzzy

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Option is a single selectable entry.
type Option struct {
	Value       string
	Description string
}

// Finder is a plain stdin selector without any terminal control. It is
// used directly in non-interactive sessions and as the fallback when fzf
// cannot run.
type Finder struct {
	prompt  string
	options []Option
}

// New creates a finder with the given prompt.
func New(prompt string) *Finder {
	return &Finder{prompt: prompt}
}

// AddOption appends a selectable entry.
func (f *Finder) AddOption(value, description string) {
	f.options = append(f.options, Option{Value: value, Description: description})
}

// Select prints a numbered list and reads one selection from stdin.
func (f *Finder) Select() (string, error) {
	if len(f.options) == 0 {
		return "", fmt.Errorf("no options available")
	}

	fmt.Println(f.prompt)
	for i, option := range f.options {
		fmt.Printf("%d. %s", i+1, option.Value)
		if option.Description != "" {
			fmt.Printf(" - %s", option.Description)
		}
		fmt.Println()
	}
	fmt.Printf("\nSelect option (1-%d): ", len(f.options))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	input = strings.TrimSpace(input)
	selection, err := strconv.Atoi(input)
	if err != nil {
		return "", fmt.Errorf("invalid selection: %s", input)
	}
	if selection < 1 || selection > len(f.options) {
		return "", fmt.Errorf("selection out of range: %d", selection)
	}

	return f.options[selection-1].Value, nil
}

// SelectWithFilter reads filter text, narrows the options and selects the
// remaining entry once the filter is unambiguous. Numeric input selects by
// position instead.
func (f *Finder) SelectWithFilter() (string, error) {
	if len(f.options) == 0 {
		return "", fmt.Errorf("no options available")
	}

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println(f.prompt)
		fmt.Print("Type to filter, or enter a number to select: ")

		input, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if selection, err := strconv.Atoi(input); err == nil {
			if selection >= 1 && selection <= len(f.options) {
				return f.options[selection-1].Value, nil
			}
			fmt.Printf("Selection %d is out of range (1-%d)\n\n", selection, len(f.options))
			continue
		}

		filtered := f.filterOptions(input)
		if len(filtered) == 0 {
			fmt.Printf("No options match filter: %s\n\n", input)
			continue
		}
		if len(filtered) == 1 {
			fmt.Printf("Auto-selecting: %s\n", filtered[0].Value)
			return filtered[0].Value, nil
		}

		fmt.Printf("\nOptions matching '%s':\n", input)
		for i, option := range filtered {
			fmt.Printf("%d. %s", i+1, option.Value)
			if option.Description != "" {
				fmt.Printf(" - %s", option.Description)
			}
			fmt.Println()
		}

		fmt.Printf("\nSelect (1-%d), or press Enter to filter again: ", len(filtered))
		input, err = reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read selection: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			fmt.Println()
			continue
		}

		selection, err := strconv.Atoi(input)
		if err != nil || selection < 1 || selection > len(filtered) {
			fmt.Printf("Invalid selection: %s\n\n", input)
			continue
		}

		return filtered[selection-1].Value, nil
	}
}

// filterOptions matches case-insensitively against value and description.
func (f *Finder) filterOptions(filter string) []Option {
	filter = strings.ToLower(filter)

	var filtered []Option
	for _, option := range f.options {
		if strings.Contains(strings.ToLower(option.Value), filter) ||
			strings.Contains(strings.ToLower(option.Description), filter) {
			filtered = append(filtered, option)
		}
	}
	return filtered
}

// IsInteractive reports whether the current session can host an
// interactive picker. Dumb terminals and redirected streams cannot.
func IsInteractive() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
