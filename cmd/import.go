package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/krrrr38/github-2-github/pkg/config"
	"github.com/krrrr38/github-2-github/pkg/git"
	"github.com/krrrr38/github-2-github/pkg/github"
	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/migration"
	"github.com/krrrr38/github-2-github/pkg/prompt"
	"github.com/krrrr38/github-2-github/pkg/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewImportCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import open issues and pull requests into the destination repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := loadGlobal(v, true)
			if err != nil {
				return err
			}
			importCfg := config.LoadImport(v)
			if err := importCfg.Validate(); err != nil {
				return err
			}
			return runImport(global, importCfg)
		},
	}

	// Import command specific flags
	f := cmd.Flags()
	f.Bool(config.KeyDryRun, false, "Show what would be imported without changing anything")
	f.Bool(config.KeySyncOnly, false, "Only reconcile already imported items")
	f.Bool(config.KeyImportIssues, false, "Import issues")
	f.Bool(config.KeyImportPRs, false, "Import pull requests (default when neither kind is given)")
	f.Bool(config.KeyInteractive, false, "Confirm each pull request before creating it")
	f.String(config.KeyPrefix, config.DefaultPrefix, "Branch prefix for imported pull requests (or set BRANCH_PREFIX env)")
	f.String(config.KeyBase, config.DefaultBase, "Base branch for imported pull requests (or set BASE_BRANCH env)")
	f.String(config.KeyIssueLabel, config.DefaultIssueLabel, "Label added to imported issues (or set ISSUE_LABEL env)")
	f.Int(config.KeyMaxRetries, config.DefaultMaxRetries, "Retries for transient GitHub API failures (or set MAX_RETRIES env)")
	f.Bool(config.KeyReimportMissing, false, "Forget imports whose destination item no longer exists so they are imported again")
	f.String(config.KeySourceRemote, config.DefaultSourceRemote, "Git remote of the source repository in the local clone")
	f.String(config.KeyDestRemote, config.DefaultDestRemote, "Git remote of the destination repository in the local clone")
	f.Duration(config.KeyGitTimeout, config.DefaultGitTimeout, "Timeout for each git command")

	return cmd
}

func newGitHubClient(cfg config.GlobalConfig, maxRetries int) (*github.Client, error) {
	if cfg.GitHubToken != "" {
		return github.NewClientByPAT(cfg.GitHubToken, github.WithMaxRetries(maxRetries)), nil
	}
	return github.NewClientByApp(cfg.GitHubAppID, cfg.GitHubAppInstallationID, cfg.GitHubAppPrivateKey,
		github.WithMaxRetries(maxRetries))
}

func runImport(global config.GlobalConfig, cfg config.ImportConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	go func() {
		select {
		case <-signalChan:
			logger.Info("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := newGitHubClient(global, cfg.MaxRetries)
	if err != nil {
		return err
	}
	source, err := client.Repository(global.SourceRepo)
	if err != nil {
		return err
	}
	dest, err := client.Repository(global.DestRepo)
	if err != nil {
		return err
	}

	store := state.NewStore(global.StateFile)
	if err := store.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := store.Unlock(); err != nil {
			logger.Warn("Failed to release state file lock", "error", err)
		}
	}()

	st, err := store.Load()
	if err != nil {
		return err
	}

	var prompter migration.Prompter
	if cfg.Interactive {
		prompter = prompt.New(os.Stdout)
	}
	g := git.NewGit(global.LocalPath, cfg.SourceRemote, cfg.DestRemote, cfg.GitTimeout)
	coordinator := migration.NewCoordinator(migration.OptionsFromConfig(cfg), source, dest, g, store, prompter)

	logger.Info("Import started...",
		"source", source.FullName(),
		"destination", dest.FullName(),
		"issues", cfg.ImportIssues,
		"prs", cfg.ImportPRs,
		"dry_run", cfg.DryRun)
	report, err := coordinator.Run(ctx, st)
	if report != nil {
		fmt.Fprintln(os.Stdout, renderReport(report))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, migration.ErrPrompt) {
			logger.Warn("Import interrupted, completed items are saved in the state file", "state_file", store.Path())
		}
		return fmt.Errorf("import failed: %w", err)
	}

	logger.Info("Import completed successfully!")
	return nil
}
