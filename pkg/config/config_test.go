package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyPrefix, DefaultPrefix, "")
	fs.String(KeyBase, DefaultBase, "")
	fs.Bool(KeyDryRun, false, "")
	fs.Bool(KeyImportIssues, false, "")
	fs.Bool(KeyImportPRs, false, "")
	fs.Int(KeyMaxRetries, DefaultMaxRetries, "")
	fs.Duration(KeyGitTimeout, DefaultGitTimeout, "")
	fs.String(KeySourceRepo, "", "")
	return fs
}

func TestLoadImport_Defaults(t *testing.T) {
	v := NewViper(filepath.Join(t.TempDir(), "missing.env"))
	cfg := LoadImport(v)

	assert.Equal(t, DefaultPrefix, cfg.Prefix)
	assert.Equal(t, DefaultBase, cfg.Base)
	assert.Equal(t, DefaultIssueLabel, cfg.IssueLabel)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultSourceRemote, cfg.SourceRemote)
	assert.Equal(t, DefaultDestRemote, cfg.DestRemote)
	assert.Equal(t, DefaultGitTimeout, cfg.GitTimeout)
	assert.False(t, cfg.ImportIssues)
	assert.True(t, cfg.ImportPRs, "pull requests are imported when no kind is requested")
	assert.NoError(t, cfg.Validate())
}

func TestLoadImport_FlagOverridesEnv(t *testing.T) {
	t.Setenv("BRANCH_PREFIX", "from-env")
	t.Setenv("BASE_BRANCH", "develop")

	v := NewViper(filepath.Join(t.TempDir(), "missing.env"))
	fs := newFlags()
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--prefix", "from-flag", "--import-issues", "--git-timeout", "30s"}))

	cfg := LoadImport(v)
	assert.Equal(t, "from-flag", cfg.Prefix)
	assert.Equal(t, "develop", cfg.Base)
	assert.True(t, cfg.ImportIssues)
	assert.False(t, cfg.ImportPRs)
	assert.Equal(t, 30*time.Second, cfg.GitTimeout)
}

func TestNewViper_LoadsDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SRC_REPO=upstream/project\nDST_REPO=fork/project\n"), 0o644))
	t.Setenv("SRC_REPO", "")
	t.Setenv("DST_REPO", "")
	os.Unsetenv("SRC_REPO")
	os.Unsetenv("DST_REPO")

	v := NewViper(envFile)
	cfg, err := LoadGlobal(v)
	require.NoError(t, err)
	assert.Equal(t, "upstream/project", cfg.SourceRepo)
	assert.Equal(t, "fork/project", cfg.DestRepo)
	assert.Equal(t, DefaultStateFile, cfg.StateFile)
	assert.Equal(t, DefaultLocalPath, cfg.LocalPath)
}

func TestLoadGlobal_LogFormatAndKeyFileFromEnv(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("PEM FROM ENV"), 0o600))
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GITHUB_APP_PRIVATE_KEY", keyFile)
	t.Setenv("GITHUB_APP_PRIVATE_KEY_AS_FILE", "true")

	v := NewViper(filepath.Join(t.TempDir(), "missing.env"))
	cfg, err := LoadGlobal(v)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.GitHubAppPrivateKeyAsFile)
	assert.Equal(t, "PEM FROM ENV", cfg.GitHubAppPrivateKey)
}

func TestLoadGlobal_PrivateKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("PEM DATA"), 0o600))

	v := NewViper(filepath.Join(t.TempDir(), "missing.env"))
	v.Set(KeyGitHubAppPrivateKey, keyFile)
	v.Set(KeyGitHubAppPrivateKeyAsFile, true)
	v.Set(KeyGitHubAppID, 12)
	v.Set(KeyGitHubAppInstallationID, 34)

	cfg, err := LoadGlobal(v)
	require.NoError(t, err)
	assert.Equal(t, "PEM DATA", cfg.GitHubAppPrivateKey)
	assert.True(t, cfg.HasAppAuth())

	v.Set(KeyGitHubAppPrivateKey, filepath.Join(t.TempDir(), "nope.pem"))
	_, err = LoadGlobal(v)
	assert.Error(t, err)
}

func TestGlobalConfig_Validate(t *testing.T) {
	valid := GlobalConfig{GitHubToken: "t", SourceRepo: "a/b", DestRepo: "c/d", StateFile: "s.json"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*GlobalConfig)
		want   string
	}{
		{"no auth", func(c *GlobalConfig) { c.GitHubToken = "" }, "GitHub token"},
		{"bad source", func(c *GlobalConfig) { c.SourceRepo = "nope" }, "src_repo"},
		{"bad dest", func(c *GlobalConfig) { c.DestRepo = "a/b/c" }, "dst_repo"},
		{"same repos", func(c *GlobalConfig) { c.DestRepo = "A/B" }, "must differ"},
		{"no state file", func(c *GlobalConfig) { c.StateFile = "" }, "state_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportConfig_Validate(t *testing.T) {
	cfg := ImportConfig{Prefix: "p", Base: "main", MaxRetries: 0, GitTimeout: time.Second}
	assert.NoError(t, cfg.Validate())

	cfg.MaxRetries = -1
	cfg.Prefix = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max-retries")
	assert.Contains(t, err.Error(), "prefix")
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := SplitRepo("octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "hello", name)

	for _, bad := range []string{"", "octo", "/hello", "octo/", "a/b/c"} {
		_, _, err := SplitRepo(bad)
		assert.Error(t, err, bad)
	}
}
