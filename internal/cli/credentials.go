package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// snowflakeConfigPath locates the Snowflake CLI connections file
var snowflakeConfigPath = func() string {
	if dir := os.Getenv("SNOWFLAKE_HOME"); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".snowflake", "config.toml")
}

// connection is the subset of a config.toml connection cove uses
type connection struct {
	Account  string
	Password string
	PAT      string
}

// resolveCredentials fills the agent token and account from SNOWFLAKE_PAT,
// then the Snowflake connections file, keeping configured values otherwise.
// The OpenAI key falls back to OPENAI_API_KEY.
func resolveCredentials(cfg *model.Config) error {
	conn, err := readConnection(snowflakeConfigPath(), cfg.Agent.Connection)
	if err != nil {
		return err
	}

	switch {
	case os.Getenv("SNOWFLAKE_PAT") != "":
		cfg.Agent.Token = os.Getenv("SNOWFLAKE_PAT")
	case conn.Password != "":
		cfg.Agent.Token = conn.Password
	case conn.PAT != "":
		cfg.Agent.Token = conn.PAT
	}

	if cfg.Agent.Account == "" && cfg.Agent.BaseURL == "" {
		cfg.Agent.Account = conn.Account
	}

	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// readConnection reads one named connection. Both [connections.<name>] and a
// top-level [<name>] table are accepted. A missing file is not an error.
func readConnection(path, name string) (connection, error) {
	if path == "" {
		return connection{}, nil
	}
	if name == "" {
		name = "default"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return connection{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return connection{}, fmt.Errorf("read %s: %w", path, err)
	}

	prefix := "connections." + name
	if !v.IsSet(prefix) {
		prefix = name
	}

	return connection{
		Account:  v.GetString(prefix + ".account"),
		Password: v.GetString(prefix + ".password"),
		PAT:      v.GetString(prefix + ".pat"),
	}, nil
}
