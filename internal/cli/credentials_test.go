package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

const connectionsTOML = `
default_connection_name = "default"

[connections.default]
account = "xy12345"
user = "analyst"
password = "toml-pat"

[connections.prod]
account = "acme-prod"
pat = "prod-pat"
`

func withSnowflakeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	orig := snowflakeConfigPath
	snowflakeConfigPath = func() string { return path }
	t.Cleanup(func() { snowflakeConfigPath = orig })
}

func TestReadConnection(t *testing.T) {
	withSnowflakeConfig(t, connectionsTOML)
	path := snowflakeConfigPath()

	conn, err := readConnection(path, "")
	if err != nil {
		t.Fatalf("readConnection failed: %v", err)
	}
	if conn.Account != "xy12345" || conn.Password != "toml-pat" {
		t.Errorf("unexpected default connection: %+v", conn)
	}

	conn, err = readConnection(path, "prod")
	if err != nil {
		t.Fatal(err)
	}
	if conn.PAT != "prod-pat" || conn.Account != "acme-prod" {
		t.Errorf("unexpected prod connection: %+v", conn)
	}
}

func TestReadConnection_TopLevelTable(t *testing.T) {
	withSnowflakeConfig(t, "[default]\naccount = \"flat\"\npassword = \"flat-pat\"\n")

	conn, err := readConnection(snowflakeConfigPath(), "default")
	if err != nil {
		t.Fatal(err)
	}
	if conn.Account != "flat" || conn.Password != "flat-pat" {
		t.Errorf("unexpected connection: %+v", conn)
	}
}

func TestReadConnection_MissingFile(t *testing.T) {
	withSnowflakeConfig(t, "")

	conn, err := readConnection(snowflakeConfigPath(), "default")
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if conn != (connection{}) {
		t.Errorf("expected empty connection, got %+v", conn)
	}
}

func TestResolveCredentials(t *testing.T) {
	tests := []struct {
		name        string
		envPAT      string
		configToken string
		account     string
		wantToken   string
		wantAccount string
	}{
		{"env wins", "env-pat", "cfg-token", "", "env-pat", "xy12345"},
		{"toml over config", "", "cfg-token", "", "toml-pat", "xy12345"},
		{"configured account kept", "", "", "my-account", "toml-pat", "my-account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSnowflakeConfig(t, connectionsTOML)
			t.Setenv("SNOWFLAKE_PAT", tt.envPAT)

			cfg := model.DefaultConfig()
			cfg.Agent.Token = tt.configToken
			cfg.Agent.Account = tt.account

			if err := resolveCredentials(cfg); err != nil {
				t.Fatal(err)
			}
			if cfg.Agent.Token != tt.wantToken {
				t.Errorf("token = %q, want %q", cfg.Agent.Token, tt.wantToken)
			}
			if cfg.Agent.Account != tt.wantAccount {
				t.Errorf("account = %q, want %q", cfg.Agent.Account, tt.wantAccount)
			}
		})
	}
}

func TestResolveCredentials_OpenAIKey(t *testing.T) {
	withSnowflakeConfig(t, "")
	t.Setenv("SNOWFLAKE_PAT", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "openai"
	if err := resolveCredentials(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected key from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
}
