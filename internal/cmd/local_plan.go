package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"otterdog/pkg/diff"
	"otterdog/pkg/models"
)

var (
	localPlanBaseRef string
	localPlanWatch   bool
)

var localPlanCmd = &cobra.Command{
	Use:   "local-plan [organization]",
	Short: "Show changes relative to a previous configuration revision",
	Long: `Show the changes an organization configuration accumulated since a
previous git revision, without contacting GitHub.

The base revision is resolved in the git repository containing the
configuration file and defaults to HEAD. With --watch the command keeps
running and re-plans whenever the configuration file changes on disk.

Exit codes: 0 when the configuration matches the base revision, 2 when
differences were found, 1 on errors. Watch mode always exits 0.

Examples:
  otterdog local-plan                      # Compare against HEAD
  otterdog local-plan --base-ref main~1    # Compare against an older commit
  otterdog local-plan my-org --watch       # Re-plan on every save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLocalPlan,
}

func init() {
	localPlanCmd.Flags().StringVar(&localPlanBaseRef, "base-ref", "HEAD", "Git revision to plan against")
	localPlanCmd.Flags().BoolVar(&localPlanWatch, "watch", false, "Keep running and re-plan when the configuration file changes")
	rootCmd.AddCommand(localPlanCmd)
}

func runLocalPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := newOrgRun(ctx, args, false)
	if err != nil {
		return err
	}

	if localPlanWatch {
		return watchLocalPlan(ctx, run)
	}

	fmt.Printf("🔎 Comparing '%s' against revision '%s'...\n\n", run.configPath(), localPlanBaseRef)

	summary, err := localPlan(run)
	if err != nil {
		return err
	}
	if summary.HasChanges() {
		return errDifferencesFound
	}
	return nil
}

// localPlan evaluates the working tree configuration against the version at
// the base revision and prints the differences.
func localPlan(run *orgRun) (diff.Summary, error) {
	expected, err := run.loadExpected()
	if err != nil {
		return diff.Summary{}, err
	}

	base, err := loadBaseConfig(run)
	if err != nil {
		return diff.Summary{}, err
	}

	operator := diff.NewOperator(nil, run.org.GitHubID, diff.Options{
		IncludeWebUI: true,
		Logger:       logger,
	})

	patches := operator.Plan(expected, base)
	printer := diff.NewPrinter(os.Stdout)
	printer.Color = true
	return printer.Print(patches), nil
}

// loadBaseConfig reads the organization configuration as it existed at the
// base revision and evaluates it with the current import paths.
func loadBaseConfig(run *orgRun) (*models.GitHubOrganization, error) {
	path := run.configPath()

	content, err := fileAtRevision(path, localPlanBaseRef)
	if err != nil {
		return nil, err
	}

	data, err := run.evaluator.EvaluateSnippet(path, content)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate configuration at revision '%s': %w", localPlanBaseRef, err)
	}

	org, err := models.LoadOrganization(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at revision '%s': %w", localPlanBaseRef, err)
	}
	return org, nil
}

// fileAtRevision returns the content of path at the given git revision. The
// path is resolved relative to the worktree root of the enclosing repository.
func fileAtRevision(path, revision string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	repository, err := git.PlainOpenWithOptions(filepath.Dir(absPath), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("configuration file '%s' is not inside a git repository: %w", path, err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	relPath, err := filepath.Rel(worktree.Filesystem.Root(), absPath)
	if err != nil {
		return "", fmt.Errorf("failed to locate '%s' inside the repository: %w", path, err)
	}

	hash, err := repository.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("failed to resolve revision '%s': %w", revision, err)
	}

	commit, err := repository.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("failed to read commit %s: %w", hash, err)
	}

	file, err := commit.File(filepath.ToSlash(relPath))
	if err != nil {
		return "", fmt.Errorf("configuration file '%s' does not exist at revision '%s': %w", relPath, revision, err)
	}

	return file.Contents()
}

// watchLocalPlan re-plans whenever the configuration file changes. Editors
// replace files via rename, so the parent directory is watched and events
// are filtered by file name.
func watchLocalPlan(ctx context.Context, run *orgRun) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	path := run.configPath()
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch '%s': %w", dir, err)
	}

	fmt.Printf("👀 Watching '%s' for changes, press Ctrl-C to stop.\n\n", path)
	replan(run)

	target := filepath.Base(path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			// Debounce: editors fire several events per save.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(250 * time.Millisecond)
			}

		case <-debounce:
			debounce = nil
			fmt.Printf("🔁 Configuration changed at %s\n\n", time.Now().Format("15:04:05"))
			replan(run)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// replan runs one plan iteration in watch mode. Errors are reported but do
// not terminate the loop, a half-saved configuration should not end the
// watch.
func replan(run *orgRun) {
	if _, err := localPlan(run); err != nil {
		fmt.Printf("❌ %v\n", err)
	}
	fmt.Println()
}
