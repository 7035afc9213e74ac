// Command creditctl drives review sessions against the analysis backend from
// a terminal.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/config"
)

const envBackendURL = "CREDITDESK_BACKEND_URL"

var version = "dev"

// cli carries the resolved global flags and the shared backend client.
type cli struct {
	envFile    string
	backendURL string
	timeout    string
	reviewer   string
	output     string
	verbose    bool

	review config.ReviewConfig
	client *backend.Client
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "creditctl",
		Short: "Review credit applications from the command line",
		Long: `creditctl mounts an application the same way the review console does and
drives its decision lifecycle: record a decision, justify an override, lock it,
and notify the applicant.

It talks directly to the analysis backend.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.init() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", ".env", "Optional dotenv file")
	flags.StringVar(&c.backendURL, "backend-url", "", "Analysis backend URL (env "+envBackendURL+")")
	flags.StringVar(&c.timeout, "timeout", "30s", "Backend request timeout")
	flags.StringVar(&c.reviewer, "reviewer", "", "Reviewer name (env "+config.EnvReviewDefaultReviewer+")")
	flags.StringVarP(&c.output, "output", "o", "table", "Output format: table, json, yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log backend traffic to stderr")

	root.AddCommand(
		newShowCmd(c),
		newDecideCmd(c),
		newCommentCmd(c),
		newRetryCmd(c),
		newWatchCmd(c),
		newNavigateCmd(c, "next"),
		newNavigateCmd(c, "prev"),
		newListCmd(c),
		newStatsCmd(c),
		newStatusCmd(c),
		newDeleteCmd(c),
		newSettingsCmd(c),
		newExportCmd(c),
		newBatchCmd(c),
	)

	return root
}

func (c *cli) init() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if c.backendURL == "" {
		c.backendURL = os.Getenv(envBackendURL)
	}
	if err := c.review.Finalize(); err != nil {
		return err
	}
	if c.reviewer == "" {
		c.reviewer = c.review.DefaultReviewer
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := &backend.Config{BaseURL: c.backendURL, Timeout: c.timeout}
	if err := cfg.Finalize(nil); err != nil {
		return err
	}
	c.client = backend.New(cfg, c.logger)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
