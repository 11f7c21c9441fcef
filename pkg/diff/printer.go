package diff

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"otterdog/pkg/models"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorMagenta = "\x1b[35m"
)

// Summary counts the patches of a rendered plan.
type Summary struct {
	Additions   int
	Changes     int
	Removals    int
	Destructive int
}

// Total returns the overall number of patches.
func (s Summary) Total() int {
	return s.Additions + s.Changes + s.Removals
}

// HasChanges reports whether the plan contains any patch at all.
func (s Summary) HasChanges() bool {
	return s.Total() > 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d additions, %d changes, %d removals", s.Additions, s.Changes, s.Removals)
}

// Printer renders plans in the classic diff notation: '+' for additions, '~'
// for changes, '-' for removals and '!' for destructive changes.
type Printer struct {
	out io.Writer

	// Color enables ANSI colored markers.
	Color bool
}

// NewPrinter creates a printer writing to out, without colors.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Print renders all patches followed by a summary line and returns the
// counts.
func (p *Printer) Print(patches []models.LivePatch) Summary {
	var summary Summary
	for _, patch := range patches {
		p.printPatch(patch, &summary)
	}

	if !summary.HasChanges() {
		fmt.Fprintln(p.out, "The live organization matches the configuration, no changes needed.")
		return summary
	}

	fmt.Fprintf(p.out, "\nPlan: %s.\n", summary)
	if summary.Destructive > 0 {
		fmt.Fprintln(p.out, p.paint(colorMagenta, fmt.Sprintf("%d destructive changes, review carefully before applying.", summary.Destructive)))
	}
	return summary
}

func (p *Printer) printPatch(patch models.LivePatch, summary *Summary) {
	switch patch.Type {
	case models.PatchAdd:
		summary.Additions++
		fmt.Fprintf(p.out, "%s %s\n", p.paint(colorGreen, "+"), patch.Path())
		p.printParams(patch)

	case models.PatchChange:
		summary.Changes++
		marker, color := "~", colorYellow
		if destructive(patch) {
			summary.Destructive++
			marker, color = "!", colorMagenta
		}
		suffix := ""
		if patch.Forced {
			suffix = " (forced)"
		}
		fmt.Fprintf(p.out, "%s %s%s\n", p.paint(color, marker), patch.Path(), suffix)
		p.printChanges(patch)

	case models.PatchRemove:
		summary.Removals++
		summary.Destructive++
		fmt.Fprintf(p.out, "%s %s\n", p.paint(colorRed, "-"), patch.Path())
	}
}

// printParams renders the configured settings of an added resource.
func (p *Printer) printParams(patch models.LivePatch) {
	params := models.ToParams(patch.Expected, false)
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(p.out, "    %s: %s\n", key, formatValue(patch.Kind, key, params[key]))
	}
}

// printChanges renders the per-field from → to lines of a change patch.
func (p *Printer) printChanges(patch models.LivePatch) {
	names := make([]string, 0, len(patch.Changes))
	for name := range patch.Changes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		change := patch.Changes[name]
		fmt.Fprintf(p.out, "    %s %s: %s → %s\n", p.paint(colorYellow, "~"), name,
			formatValue(patch.Kind, name, change.From), formatValue(patch.Kind, name, change.To))
	}
}

func (p *Printer) paint(color, s string) string {
	if !p.Color {
		return s
	}
	return color + s + colorReset
}

// destructive marks patches that lose data or widen exposure: any removal,
// and flipping a repository from private to public.
func destructive(patch models.LivePatch) bool {
	if patch.Type == models.PatchRemove {
		return true
	}
	if patch.Type != models.PatchChange {
		return false
	}
	if change, ok := patch.Changes["private"]; ok {
		from, _ := change.From.(bool)
		to, ok := change.To.(bool)
		if ok && from && !to {
			return true
		}
	}
	return false
}

// formatValue renders a single setting value. Secret material is redacted,
// plan output ends up in terminals and pull request comments.
func formatValue(kind models.ResourceKind, field string, value any) string {
	if field == "secret" {
		return models.DummySecretValue
	}
	if field == "value" && (kind == models.KindOrgSecret || kind == models.KindRepoSecret) {
		return models.DummySecretValue
	}

	switch v := value.(type) {
	case nil:
		return "<unset>"
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// EscapeForComment prepares rendered plan output for a GitHub comment: ANSI
// colors are stripped and lines starting with a diff marker are padded with
// a space so the markdown diff renderer leaves them alone.
func EscapeForComment(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		switch line[0] {
		case '+', '-', '~', '!':
			lines[i] = " " + line
		}
	}
	return strings.Join(lines, "\n")
}
