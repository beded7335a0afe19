package main

import (
	"fmt"
	"os"

	"bilagscraper/pkg/config"
	"bilagscraper/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage bilagscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (EMAIL, PASSWORD, BILAG_*)
  - .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to bilagscraper.yaml, or to the path
given with --config. Passwords are never written to the file.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and credentials",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "bilagscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file %s already exists; remove it first", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Put EMAIL and PASSWORD in a .env file or run 'bilagscraper auth login'")
	fmt.Printf("2. Run 'bilagscraper config validate --config %s'\n", path)
	fmt.Printf("3. Start downloading with 'bilagscraper scrape --config %s'\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.WithoutPassword())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	password := "(not set)"
	if cfg.Credentials.Password != "" {
		password = "(set)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\npassword: %s\n", password)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ui.PrintSuccess("Configuration is valid")

	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintWarning("Credentials", err)
		ui.PrintInfo("Hint", "a stored login from 'bilagscraper auth login' can be used with --account")
		return nil
	}
	ui.PrintSuccess("Credentials found for " + cfg.Credentials.Email)
	return nil
}
