// cmd/myvcs/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/config"
	"github.com/Sqizeeeeee/lab7-part2/internal/logging"
	"github.com/Sqizeeeeee/lab7-part2/internal/repository"
	"github.com/Sqizeeeeee/lab7-part2/internal/watch"
)

var (
	repoFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "myvcs",
	Short: "myvcs is a minimal content-addressed version control tool",
	Long: `myvcs stores file snapshots as content-addressed blobs, trees and commits,
and stages pending changes in an index until they are committed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// session is one opened repository plus the logger bound to this invocation.
type session struct {
	repo   *repository.Repository
	logger *zap.Logger
	ctx    context.Context
}

func (s *session) Close() {
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("closing repository", zap.Error(err))
	}
	s.logger.Sync()
}

func startDir() (string, error) {
	if repoFlag != "" {
		return filepath.Abs(repoFlag)
	}
	return os.Getwd()
}

func newLogger(ctx context.Context, cfg *config.Config) (*zap.Logger, error) {
	level := logLevelFlag
	if level == "" {
		level = cfg.LogLevel
	}
	base, err := logging.New(level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return base.FromContext(ctx), nil
}

func openSession(cmd *cobra.Command) (*session, error) {
	start, err := startDir()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	root, err := repository.FindRoot(start)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(filepath.Join(root, repository.DirName))
	if err != nil {
		return nil, err
	}

	ctx := logging.WithRunID(cmd.Context(), logging.NewRunID())
	logger, err := newLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo, err := repository.Open(root, repository.WithLogger(logger), repository.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &session{repo: repo, logger: logger, ctx: ctx}, nil
}

// absPaths resolves command-line paths against the working directory.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "C", "", "run as if started in this directory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")

	var initCmd = &cobra.Command{
		Use:   "init [dir]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := startDir()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			if len(args) == 1 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return err
				}
			}

			ctx := logging.WithRunID(cmd.Context(), logging.NewRunID())
			logger, err := newLogger(ctx, config.Default())
			if err != nil {
				return err
			}
			defer logger.Sync()

			repo, err := repository.Init(dir, repository.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			defer repo.Close()

			fmt.Println("Initialized repository in", repo.Dir())
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage file contents for the next commit",
		Long:  `Stores the current content of each path and stages it. Directories are walked recursively; use '.' to add the whole tree.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			entries, err := s.repo.Add(s.ctx, paths)
			if err != nil {
				return fmt.Errorf("adding files: %w", err)
			}

			green := color.New(color.FgGreen).SprintFunc()
			for _, e := range entries {
				fmt.Printf("\t%s %s\n", green("+"), e.Path)
			}
			fmt.Printf("Staged %d file(s)\n", len(entries))
			return nil
		},
	}

	var unstageCmd = &cobra.Command{
		Use:   "unstage <paths...>",
		Short: "Remove paths from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			removed, err := s.repo.Unstage(paths)
			if err != nil {
				return fmt.Errorf("unstaging files: %w", err)
			}
			if len(removed) == 0 {
				fmt.Println("Nothing matched the index")
				return nil
			}
			for _, p := range removed {
				fmt.Printf("\t- %s\n", p)
			}
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the staged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			author, _ := cmd.Flags().GetString("author")
			if message == "" {
				return fmt.Errorf("a commit message is required (-m)")
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.repo.Commit(message, author)
			if err != nil {
				return err
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			root := ""
			if c.IsRoot() {
				root = " (root-commit)"
			}
			fmt.Printf("[%s%s] %s\n", yellow(shortHash(c.Hash)), root, c.Message)
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "commit message")
	commitCmd.Flags().String("author", "", "commit author (defaults to the configured author)")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show HEAD and the staged entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.repo.Status()
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}

			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			if st.Head == "" {
				fmt.Println("No commits yet")
			} else {
				fmt.Println("HEAD", yellow(shortHash(st.Head)))
			}

			if len(st.Staged) == 0 {
				fmt.Println("Nothing staged")
				return nil
			}

			fmt.Printf("\nChanges to be committed:\n")
			fmt.Println("  (use \"myvcs unstage <file>...\" to unstage)")
			for _, e := range st.Staged {
				switch e.State {
				case repository.StateStaged:
					fmt.Printf("\t%s %s\n", green("staged:  "), e.Path)
				case repository.StateModified:
					fmt.Printf("\t%s %s\n", yellow("modified:"), e.Path)
				case repository.StateDeleted:
					fmt.Printf("\t%s %s\n", red("deleted: "), e.Path)
				}
			}
			fmt.Println()
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show commit history from HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("max-count")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			commits, err := s.repo.Log(limit)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if len(commits) == 0 {
				fmt.Println("No commits yet")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, c := range commits {
				fmt.Println(yellow("commit " + c.Hash))
				fmt.Println("Author:", c.Author)
				fmt.Println("Date:  ", time.Unix(c.Timestamp, 0).Format(time.RFC1123Z))
				fmt.Printf("\n    %s\n\n", c.Message)
			}
			return nil
		},
	}
	logCmd.Flags().IntP("max-count", "n", 0, "limit the number of commits shown")

	var catFileCmd = &cobra.Command{
		Use:   "cat-file <hash>",
		Short: "Print a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeOnly, _ := cmd.Flags().GetBool("type")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			obj, err := s.repo.Cat(args[0])
			if err != nil {
				return err
			}
			if typeOnly {
				fmt.Println(obj.Kind())
				return nil
			}
			_, err = os.Stdout.Write(obj.Payload())
			return err
		},
	}
	catFileCmd.Flags().BoolP("type", "t", false, "print only the object kind")

	var verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored object",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.repo.Verify()
			if err != nil {
				return fmt.Errorf("verifying objects: %w", err)
			}

			red := color.New(color.FgRed).SprintFunc()
			for _, h := range report.Corrupt {
				fmt.Printf("\t%s %s\n", red("corrupt"), h)
			}
			fmt.Printf("Checked %d object(s), %d corrupt\n", report.Checked, len(report.Corrupt))
			if len(report.Corrupt) > 0 {
				return fmt.Errorf("%d corrupt object(s)", len(report.Corrupt))
			}
			return nil
		},
	}

	var objectsCmd = &cobra.Command{
		Use:   "objects",
		Short: "List cataloged objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.repo.Objects(kind)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s %-6s %8d\n", e.Hash, e.Kind, e.Size)
			}

			stats, err := s.repo.ObjectStats()
			if err != nil {
				return err
			}
			kinds := make([]string, 0, len(stats))
			for k := range stats {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			fmt.Println()
			for _, k := range kinds {
				fmt.Printf("%-6s %d object(s), %d byte(s)\n", k, stats[k].Count, stats[k].Bytes)
			}
			return nil
		},
	}
	objectsCmd.Flags().String("kind", "", "only list objects of this kind (blob, tree, commit)")

	var reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the object catalog from the object files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.repo.Reindex()
			if err != nil {
				return fmt.Errorf("reindexing: %w", err)
			}
			fmt.Printf("Cataloged %d object(s)\n", n)
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Restage files whenever they are written",
		Long:  `Watches the given files (or every staged file when none are given) and restages each one after it changes. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var paths []string
			if len(args) == 0 {
				paths = s.repo.Index().StagedPaths()
			} else {
				for _, a := range args {
					abs, err := filepath.Abs(a)
					if err != nil {
						return err
					}
					rel, err := filepath.Rel(s.repo.Root(), abs)
					if err != nil {
						return err
					}
					paths = append(paths, filepath.ToSlash(rel))
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("nothing to watch: stage files first or name them")
			}

			restage := func(ctx context.Context, p []string) error {
				abs := make([]string, len(p))
				for i, rel := range p {
					abs[i] = filepath.Join(s.repo.Root(), filepath.FromSlash(rel))
				}
				_, err := s.repo.Add(ctx, abs)
				return err
			}

			w, err := watch.New(s.repo.Root(), paths, restage, s.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Watching %d file(s), press Ctrl+C to stop\n", len(paths))
			return w.Run(ctx)
		},
	}

	rootCmd.AddCommand(initCmd, addCmd, unstageCmd, commitCmd, statusCmd, logCmd,
		catFileCmd, verifyCmd, objectsCmd, reindexCmd, watchCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}
