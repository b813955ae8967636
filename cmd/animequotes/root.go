package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varoOP/animequotes/internal/app"
	"github.com/varoOP/animequotes/internal/config"
	"github.com/varoOP/animequotes/internal/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "animequotes",
	Short: "Build an anime quote database from fan subtitles",
	Long: `AnimeQuotes collects episode release links from a public torrent index,
downloads the matching subtitle tracks and loads every spoken line into
SQLite, one table per anime.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.animequotes.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory for downloaded and decoded subtitles")
	rootCmd.PersistentFlags().String("links-dir", "links", "directory for links documents")
	rootCmd.PersistentFlags().String("database", "animequotes.db", "path of the SQLite database")
	rootCmd.PersistentFlags().String("cache-dir", "", "directory for caching fetched pages")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotating file")

	// Bind flags to viper
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("links_dir", rootCmd.PersistentFlags().Lookup("links-dir"))
	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	// Environment variables
	viper.SetEnvPrefix("ANIMEQUOTES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	dirs = append(dirs, ".")

	// If a config file is found, read it in.
	if readConfig(viper.GetViper(), cfgFile, dirs) {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configNames are tried in order in every search directory.
var configNames = []string{".animequotes", "config"}

// readConfig loads cfgFile when set, otherwise the first of configNames found
// in dirs. It reports whether a file was read.
func readConfig(v *viper.Viper, cfgFile string, dirs []string) bool {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig() == nil
	}

	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.SetConfigType("yaml")

	for _, name := range configNames {
		v.SetConfigName(name)
		if err := v.ReadInConfig(); err == nil {
			return true
		}
	}

	return false
}

// runStages loads the configuration, builds the application and runs the
// selected stages.
func runStages(cmd *cobra.Command, stages app.Stage) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer log.Close()

	application, err := app.NewApp(log.Logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	filter, _ := cmd.Flags().GetString("filter")

	if err := application.Run(cmd.Context(), stages, filter); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	return nil
}
