// Package cli provides the command-line interface of netsweep.
// This package implements the Cobra-based CLI structure with commands for
// serving the API, running scans in-process and managing the scan history.
package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	envPrefix         = "NETSWEEP"
	defaultConfigName = "netsweep"
)

var (
	cfgFile string
	verbose bool

	// appConfig is the merged configuration of the running command.
	appConfig *config.Config
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netsweep",
	Short: "Two-phase network scanner with live results",
	Long: `netsweep finds the live hosts of a target with a fast nmap discovery
pass, then runs a detailed service scan against each one. Progress is streamed
as it happens and completed scans are kept in a local history that can be
listed, exported as CSV and deleted.`,
	Version:           getVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./netsweep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// flagKeys maps command flags onto the configuration keys they override.
var flagKeys = map[string]string{
	"host": "api.host",
	"port": "api.port",
}

// initConfig merges defaults, the config file, NETSWEEP_* environment
// variables and command flags into appConfig, then sets up logging.
func initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}

	appConfig = cfg
	initLogging(cfg)

	if used := v.ConfigFileUsed(); used != "" {
		logging.Debug("Using config file", "path", used)
	}
	return nil
}

// bindFlags binds the flags of flagKeys that the command defines.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// initLogging initializes structured logging based on configuration.
func initLogging(cfg *config.Config) {
	logConfig := cfg.Logging
	logConfig.AddSource = logConfig.AddSource || logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
