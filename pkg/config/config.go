package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag and configuration keys
const (
	KeyToken                     = "token"
	KeyGitHubAppID               = "github-app-id"
	KeyGitHubAppInstallationID   = "github-app-installation-id"
	KeyGitHubAppPrivateKey       = "github-app-private-key"
	KeyGitHubAppPrivateKeyAsFile = "github-app-private-key-as-file"
	KeySourceRepo                = "src_repo"
	KeyDestRepo                  = "dst_repo"
	KeyLocalPath                 = "local_path"
	KeyStateFile                 = "state_file"
	KeyLogLevel                  = "log-level"
	KeyLogFormat                 = "log-format"

	KeyPrefix          = "prefix"
	KeyBase            = "base"
	KeyIssueLabel      = "issue_label"
	KeyDryRun          = "dry-run"
	KeySyncOnly        = "sync-only"
	KeyImportIssues    = "import-issues"
	KeyImportPRs       = "import-prs"
	KeyInteractive     = "interactive"
	KeyMaxRetries      = "max-retries"
	KeyReimportMissing = "reimport-missing"
	KeySourceRemote    = "source-remote"
	KeyDestRemote      = "dest-remote"
	KeyGitTimeout      = "git-timeout"
)

// Defaults
const (
	DefaultLocalPath    = "."
	DefaultStateFile    = "import_state.json"
	DefaultPrefix       = "imported-pr"
	DefaultBase         = "main"
	DefaultIssueLabel   = "imported-from-upstream"
	DefaultMaxRetries   = 3
	DefaultSourceRemote = "original"
	DefaultDestRemote   = "origin"
	DefaultGitTimeout   = 120 * time.Second
)

// envBindings maps keys to the environment variables that feed them
var envBindings = map[string]string{
	KeyToken:                     "GITHUB_TOKEN",
	KeyGitHubAppID:               "GITHUB_APP_ID",
	KeyGitHubAppInstallationID:   "GITHUB_APP_INSTALLATION_ID",
	KeyGitHubAppPrivateKey:       "GITHUB_APP_PRIVATE_KEY",
	KeyGitHubAppPrivateKeyAsFile: "GITHUB_APP_PRIVATE_KEY_AS_FILE",
	KeySourceRepo:                "SRC_REPO",
	KeyDestRepo:                  "DST_REPO",
	KeyLocalPath:                 "LOCAL_REPO_PATH",
	KeyStateFile:                 "STATE_FILE",
	KeyLogLevel:                  "LOG_LEVEL",
	KeyLogFormat:                 "LOG_FORMAT",
	KeyPrefix:                    "BRANCH_PREFIX",
	KeyBase:                      "BASE_BRANCH",
	KeyIssueLabel:                "ISSUE_LABEL",
	KeyMaxRetries:                "MAX_RETRIES",
}

type GlobalConfig struct {
	GitHubToken               string
	GitHubAppID               int64
	GitHubAppInstallationID   int64
	GitHubAppPrivateKey       string
	GitHubAppPrivateKeyAsFile bool
	SourceRepo                string // owner/name
	DestRepo                  string // owner/name
	LocalPath                 string
	StateFile                 string
	LogLevel                  string
	LogFormat                 string
}

type ImportConfig struct {
	Prefix          string
	Base            string
	IssueLabel      string
	DryRun          bool
	SyncOnly        bool
	ImportIssues    bool
	ImportPRs       bool
	Interactive     bool
	MaxRetries      int
	ReimportMissing bool
	SourceRemote    string
	DestRemote      string
	GitTimeout      time.Duration
}

// NewViper loads .env into the process environment and returns a viper
// instance with environment bindings and defaults registered.
func NewViper(envFiles ...string) *viper.Viper {
	// a missing .env is normal
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	v.SetDefault(KeyLocalPath, DefaultLocalPath)
	v.SetDefault(KeyStateFile, DefaultStateFile)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyPrefix, DefaultPrefix)
	v.SetDefault(KeyBase, DefaultBase)
	v.SetDefault(KeyIssueLabel, DefaultIssueLabel)
	v.SetDefault(KeyMaxRetries, DefaultMaxRetries)
	v.SetDefault(KeySourceRemote, DefaultSourceRemote)
	v.SetDefault(KeyDestRemote, DefaultDestRemote)
	v.SetDefault(KeyGitTimeout, DefaultGitTimeout)
	return v
}

// BindFlags makes every flag in fs override the matching key
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// LoadGlobal reads the global settings. A private key given as a file is read here.
func LoadGlobal(v *viper.Viper) (GlobalConfig, error) {
	cfg := GlobalConfig{
		GitHubToken:               v.GetString(KeyToken),
		GitHubAppID:               v.GetInt64(KeyGitHubAppID),
		GitHubAppInstallationID:   v.GetInt64(KeyGitHubAppInstallationID),
		GitHubAppPrivateKey:       v.GetString(KeyGitHubAppPrivateKey),
		GitHubAppPrivateKeyAsFile: v.GetBool(KeyGitHubAppPrivateKeyAsFile),
		SourceRepo:                strings.TrimSpace(v.GetString(KeySourceRepo)),
		DestRepo:                  strings.TrimSpace(v.GetString(KeyDestRepo)),
		LocalPath:                 v.GetString(KeyLocalPath),
		StateFile:                 v.GetString(KeyStateFile),
		LogLevel:                  v.GetString(KeyLogLevel),
		LogFormat:                 v.GetString(KeyLogFormat),
	}
	if cfg.GitHubAppPrivateKeyAsFile && cfg.GitHubAppPrivateKey != "" {
		privateKey, err := os.ReadFile(cfg.GitHubAppPrivateKey)
		if err != nil {
			return cfg, fmt.Errorf("could not read private key %s: %w", cfg.GitHubAppPrivateKey, err)
		}
		cfg.GitHubAppPrivateKey = string(privateKey)
	}
	return cfg, nil
}

// LoadImport reads the import settings. With neither kind requested, pull requests are imported.
func LoadImport(v *viper.Viper) ImportConfig {
	cfg := ImportConfig{
		Prefix:          v.GetString(KeyPrefix),
		Base:            v.GetString(KeyBase),
		IssueLabel:      v.GetString(KeyIssueLabel),
		DryRun:          v.GetBool(KeyDryRun),
		SyncOnly:        v.GetBool(KeySyncOnly),
		ImportIssues:    v.GetBool(KeyImportIssues),
		ImportPRs:       v.GetBool(KeyImportPRs),
		Interactive:     v.GetBool(KeyInteractive),
		MaxRetries:      v.GetInt(KeyMaxRetries),
		ReimportMissing: v.GetBool(KeyReimportMissing),
		SourceRemote:    v.GetString(KeySourceRemote),
		DestRemote:      v.GetString(KeyDestRemote),
		GitTimeout:      v.GetDuration(KeyGitTimeout),
	}
	if !cfg.ImportIssues && !cfg.ImportPRs {
		cfg.ImportPRs = true
	}
	return cfg
}

// HasAppAuth reports whether GitHub App credentials are complete
func (c GlobalConfig) HasAppAuth() bool {
	return c.GitHubAppID > 0 && c.GitHubAppInstallationID > 0 && c.GitHubAppPrivateKey != ""
}

// Validate checks settings needed to talk to GitHub
func (c GlobalConfig) Validate() error {
	var errs []error
	if c.GitHubToken == "" && !c.HasAppAuth() {
		errs = append(errs, errors.New("GitHub token or GitHub App settings are required"))
	}
	if _, _, err := SplitRepo(c.SourceRepo); err != nil {
		errs = append(errs, fmt.Errorf("--%s: %w", KeySourceRepo, err))
	}
	if _, _, err := SplitRepo(c.DestRepo); err != nil {
		errs = append(errs, fmt.Errorf("--%s: %w", KeyDestRepo, err))
	}
	if c.SourceRepo != "" && strings.EqualFold(c.SourceRepo, c.DestRepo) {
		errs = append(errs, errors.New("source and destination repositories must differ"))
	}
	if c.StateFile == "" {
		errs = append(errs, fmt.Errorf("--%s must not be empty", KeyStateFile))
	}
	return errors.Join(errs...)
}

func (c ImportConfig) Validate() error {
	var errs []error
	if c.Prefix == "" {
		errs = append(errs, fmt.Errorf("--%s must not be empty", KeyPrefix))
	}
	if c.Base == "" {
		errs = append(errs, fmt.Errorf("--%s must not be empty", KeyBase))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", KeyMaxRetries))
	}
	if c.GitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--%s must be positive", KeyGitTimeout))
	}
	return errors.Join(errs...)
}

// SplitRepo splits "owner/name"
func SplitRepo(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in owner/name form, got %q", fullName)
	}
	return parts[0], parts[1], nil
}
