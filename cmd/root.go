package cmd

import (
	"os"

	"github.com/krrrr38/github-2-github/pkg/config"
	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "github-2-github",
		Short: "Import issues and pull requests from one GitHub repository into another",
		Long: `Import issues and pull requests from one GitHub repository into another.
This tool performs:
- Creation of destination issues and pull requests with attribution to the original
- Replication of comments and reviews
- Propagation of closed and merged states to already imported items
- Resumable runs tracked in a local state file`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			logger.Configure(v.GetString(config.KeyLogLevel), v.GetString(config.KeyLogFormat), os.Stderr)
			return nil
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyToken, "", "GitHub token (or set GITHUB_TOKEN env)")
	pf.Int64(config.KeyGitHubAppID, 0, "GitHub APP ID (or set GITHUB_APP_ID env)")
	pf.Int64(config.KeyGitHubAppInstallationID, 0, "GitHub APP Installation ID (or set GITHUB_APP_INSTALLATION_ID env)")
	pf.String(config.KeyGitHubAppPrivateKey, "", "GitHub APP private key (or set GITHUB_APP_PRIVATE_KEY env)")
	pf.Bool(config.KeyGitHubAppPrivateKeyAsFile, false, "GitHub APP private key as file")
	pf.String(config.KeySourceRepo, "", "Source repository owner/name (or set SRC_REPO env)")
	pf.String(config.KeyDestRepo, "", "Destination repository owner/name (or set DST_REPO env)")
	pf.String(config.KeyLocalPath, config.DefaultLocalPath, "Local clone with the source and destination remotes (or set LOCAL_REPO_PATH env)")
	pf.String(config.KeyStateFile, config.DefaultStateFile, "State file tracking imported items (or set STATE_FILE env)")
	pf.String(config.KeyLogLevel, logger.DefaultLevel, "Log level (debug, info, warn, error, fatal)")
	pf.String(config.KeyLogFormat, "console", "Log format (console, json)")

	rootCmd.AddCommand(NewImportCommand(v), NewStatusCommand(v))

	return rootCmd
}

// loadGlobal reads and validates the global settings
func loadGlobal(v *viper.Viper, needAuth bool) (config.GlobalConfig, error) {
	cfg, err := config.LoadGlobal(v)
	if err != nil {
		return cfg, err
	}
	if needAuth {
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
