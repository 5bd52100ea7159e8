package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schaubda/psdatahelper/cmd/psdh/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "psdh",
	Short: "PowerSchool data helper CLI",
	Long: `A command-line interface for working with PowerSchool table data and
PowerQueries through a plugin's API credentials.

Credentials are read from flags, the config file, or the OS keyring; missing
values are prompted for on first use and stored for later sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.psdh/config.yml)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "PowerSchool server address")
	rootCmd.PersistentFlags().StringP("plugin", "p", "", "plugin name for credential lookup")
	rootCmd.PersistentFlags().StringP("token", "t", "", "pre-issued access token")
	rootCmd.PersistentFlags().String("client-id", "", "plugin client id")
	rootCmd.PersistentFlags().String("client-secret", "", "plugin client secret")
	rootCmd.PersistentFlags().String("query-prefix", "", "prefix prepended to PowerQuery names")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("plugin", rootCmd.PersistentFlags().Lookup("plugin"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("client-id", rootCmd.PersistentFlags().Lookup("client-id"))
	_ = viper.BindPFlag("client-secret", rootCmd.PersistentFlags().Lookup("client-secret"))
	_ = viper.BindPFlag("query-prefix", rootCmd.PersistentFlags().Lookup("query-prefix"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewTableCommand())
	rootCmd.AddCommand(commands.NewStudentCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Create config directory if it doesn't exist
		configDir := filepath.Join(home, ".psdh")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		}

		// Search config in ~/.psdh/config.yml
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("PSDH")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
