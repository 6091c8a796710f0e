package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"broker-fee-reconciler/cmd/feerecon/config"
	"broker-fee-reconciler/internal/telemetry"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  logger.Logger
}

// NewRootCommand builds the feerecon command tree with its own viper
// instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:   "feerecon",
		Short: "Broker statement fee and P&L reconciliation",
		Long: `feerecon reads broker trading statements (CSV, XLS, XLSX or PDF) and
reconciles borrow, locate, market data and interest charges against the
trades they belong to. It reports per-position fees, net P&L, the most
expensive symbols and period-over-period fee changes.

Examples:
  feerecon analyze statement_2024-10.csv
  feerecon analyze statement_2024-10.xlsx --format json --output report.json
  feerecon analyze statement.csv --tickers GV,AMD --start 2024-10-01 --end 2024-10-15
  feerecon compare statement_2024-09.csv statement_2024-10.csv
  feerecon serve --addr :8080`,
		Version:       getVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.Shutdown(cmd.Context())
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	addGlobalFlags(flags, a)

	rootCmd.AddCommand(newAnalyzeCommand(a), newCompareCommand(a), newServeCommand(a))
	return rootCmd
}

func addGlobalFlags(flags *pflag.FlagSet, a *app) {
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.BoolP("verbose", "v", false, "verbose output (debug logging and row tracing)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.Bool("trace", false, "print OpenTelemetry spans to stderr")

	// Bind flags to viper
	a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	a.v.BindPFlag("telemetry.enabled", flags.Lookup("trace"))
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		return NewCLIErrorHandler(os.Stderr, verbose).HandleError(err)
	}
	return 0
}

// initConfig reads .env, the environment and the config file, then sets up
// logging and tracing. Flags override all of them.
func (a *app) initConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, ".env", ".env", err)
	}

	a.v.SetEnvPrefix(config.EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", a.cfgFile, err).
				WithSuggestion("check the config file path and syntax")
		}
	}

	logConfig, err := config.CreateLoggerConfig(a.v)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", logConfig.Output, err)
	}
	logger.SetGlobalLogger(log)
	a.logger = log.WithComponent("cli")

	if a.cfgFile != "" {
		a.logger.WithField("config", a.v.ConfigFileUsed()).Debug("Using config file")
	}

	if err := telemetry.Init(telemetry.Config{
		Enabled: a.v.GetBool("telemetry.enabled"),
		Writer:  cmd.ErrOrStderr(),
	}); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "telemetry.enabled", true, err)
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
