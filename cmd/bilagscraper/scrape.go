package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"bilagscraper/pkg/auth"
	"bilagscraper/pkg/config"
	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/scraper"
	"bilagscraper/pkg/telemetry"
	"bilagscraper/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Scrape command flags
	outputDir     string
	detailsFile   string
	concurrency   int
	maxAttempts   int
	timeout       time.Duration
	rateLimit     int
	headless      bool
	chromePath    string
	email         string
	accountEmail  string
	failOnError   bool
	noManifest    bool
	notifications bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Sign in, list and download every receipt",
	Long: `Sign in to the portal, write the receipt listing to the details file and
download each receipt image into the output directory.

A failed download never stops the run. Every receipt is reported as it is
processed and a summary table is printed at the end.`,
	Example: `  # Credentials from EMAIL and PASSWORD
  bilagscraper scrape

  # Use a stored account and a different output directory
  bilagscraper scrape --account me@example.com --output ./receipts

  # Four parallel downloads with up to three attempts each
  bilagscraper scrape --concurrency 4 --max-attempts 3

  # Exit with status 2 when any receipt was not downloaded
  bilagscraper scrape --fail-on-error`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addScrapeFlags(scrapeCmd.Flags())
	// Running without a subcommand scrapes, so the root takes the same flags
	addScrapeFlags(rootCmd.Flags())
}

func addScrapeFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&outputDir, "output", "o", "", "download directory (default \"bilag\")")
	fs.StringVar(&detailsFile, "details-file", "", "listing output file (default \"item_details.txt\")")
	fs.IntVar(&concurrency, "concurrency", 1, "number of parallel downloads")
	fs.IntVar(&maxAttempts, "max-attempts", 1, "attempts per receipt for network errors, 429 and 5xx")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "timeout per download request")
	fs.IntVar(&rateLimit, "rate-limit", 0, "download requests per minute (0 for unlimited)")
	fs.BoolVar(&headless, "headless", true, "run Chrome without a window")
	fs.StringVar(&chromePath, "chrome-path", "", "path to the Chrome binary")
	fs.StringVar(&email, "email", "", "portal login email")
	fs.StringVarP(&accountEmail, "account", "a", "", "use a stored account")
	fs.BoolVar(&failOnError, "fail-on-error", false, "exit with status 2 if any receipt was not downloaded")
	fs.BoolVar(&noManifest, "no-manifest", false, "do not record the run for 'bilagscraper report'")
	fs.BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")
}

func scrapeFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	if fs.Changed("output") {
		flags["output"] = outputDir
	}
	if fs.Changed("details-file") {
		flags["details-file"] = detailsFile
	}
	if fs.Changed("concurrency") {
		flags["concurrency"] = concurrency
	}
	if fs.Changed("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if fs.Changed("timeout") {
		flags["timeout"] = timeout
	}
	if fs.Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if fs.Changed("headless") {
		flags["headless"] = headless
	}
	if fs.Changed("chrome-path") {
		flags["chrome-path"] = chromePath
	}
	if fs.Changed("email") {
		flags["email"] = email
	}
	if noManifest {
		flags["manifest"] = false
	}
	if fs.Changed("notifications") {
		flags["notifications"] = notifications
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(scrapeFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("bilagscraper starting")

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	account, err := resolveAccount(cfg, accountEmail)
	if err != nil {
		return err
	}
	ui.PrintInfo("Account", account.Email)
	ui.PrintInfo("Portal", cfg.Portal.BaseURL)

	var out io.Writer = cmd.OutOrStdout()
	if quiet {
		out = nil
	}
	s, err := scraper.New(cfg, account, scraper.WithOutput(out))
	if err != nil {
		return err
	}

	summary, err := s.Run(ctx)
	if err != nil {
		return err
	}

	if failed := summary.Failed(); failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d receipts were not downloaded", failed, len(summary.Results)))
		if failOnError {
			return &exitError{code: 2, err: fmt.Errorf("%d receipts failed", failed)}
		}
		return nil
	}
	ui.PrintSuccess(fmt.Sprintf("All %d receipts downloaded to %s", summary.Downloaded(), summary.DownloadDir))
	return nil
}

// resolveAccount picks the login. Explicit credentials from the config file,
// environment or flags win; otherwise a stored account is used.
func resolveAccount(cfg *config.Config, stored string) (*auth.Account, error) {
	if stored == "" && cfg.ValidateCredentials() == nil {
		return &auth.Account{Email: cfg.Credentials.Email, Password: cfg.Credentials.Password}, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	lookup := stored
	if lookup == "" {
		lookup = cfg.Credentials.Email
	}
	account, err := manager.Resolve(lookup)
	if err != nil {
		if stored != "" {
			return nil, fmt.Errorf("account %s: %w (see 'bilagscraper auth list')", stored, err)
		}
		return nil, cfg.ValidateCredentials()
	}
	return account, nil
}
