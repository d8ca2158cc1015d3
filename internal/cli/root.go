package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.3.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cove",
	Short: "Cove - chain-of-verification for hosted data agents",
	Long: `Cove asks a hosted data agent a question, then checks the answer.

Every factual claim in the answer is turned into an independent verification
question and asked again in isolation. The two answers are compared, and
inconsistent claims trigger a corrected response.

Cove checks agreement between answers. It does not establish ground truth.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cove %s\n", Version)
	},
}

// Keys that may be overridden through COVE_* environment variables
var envKeys = []string{
	"agent.account", "agent.base_url", "agent.database", "agent.schema", "agent.name",
	"agent.token", "agent.connection", "agent.timeout",
	"llm.provider", "llm.model", "llm.api_key", "llm.base_url",
	"cove.max_claims", "cove.workers", "cove.verification_timeout", "cove.total_timeout",
	"http.http_proxy", "http.https_proxy", "http.no_proxy",
	"rate_limiting.requests_per_second", "rate_limiting.burst_size",
	"cache.enabled", "cache.dir",
	"store.enabled", "store.path",
	"log.level", "log.format",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.cove/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".cove"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// COVE_AGENT_ACCOUNT overrides agent.account, and so on
	viper.SetEnvPrefix("COVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file, environment and bound flags over the defaults
func loadConfig() (*model.Config, error) {
	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := resolveCredentials(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
