package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/primmus/DC3-MWCP/internal/cli"
	"github.com/primmus/DC3-MWCP/internal/cli/config"
	"github.com/primmus/DC3-MWCP/internal/cli/hooks"
	"github.com/primmus/DC3-MWCP/pkg/mwcp"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
	_ "github.com/primmus/DC3-MWCP/pkg/mwcp/parsers" // Register the bundled parsers.
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Flags persistent across commands
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mwcp <parser> <input>...",
	Short: "Runs configuration parsers against malware samples and reports their findings.",
	Long: `mwcp dispatches framework parsers against malware samples and collects
what they extract - C2 endpoints, credentials, mutexes, dropped files -
into validated, uniformly structured reports.

It features:
  - A curated metadata field taxonomy with automatic subfield derivation
    (a reported C2 URL also yields its socket address, port, and path).
  - Batch analysis over files or whole directories.
  - Text and JSON report rendering.
  - Extraction and registration of embedded output artifacts.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Cancel the batch cleanly on interrupt; the engine finishes the
		// current sample's teardown before stopping.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		settings, logger, err := config.LoadAndValidate(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		parserSpec, inputArgs := args[0], args[1:]

		// Progress bar only on an interactive stderr, and never under
		// verbose logging where it would interleave with log lines.
		var bar hooks.ProgressBar
		if term.IsTerminal(int(os.Stderr.Fd())) && !settings.Verbose {
			bar = &spinnerBar{progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("analyzing"),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)}
		}
		eventHooks := hooks.NewCLIHooks(logger, settings.Verbose, bar)

		return cli.Run(ctx, settings, logger, eventHooks, parserSpec, inputArgs, cmd.OutOrStdout())
	},
}

// spinnerBar adapts the schollz progress bar to the hooks.ProgressBar
// interface, whose Describe returns an error.
type spinnerBar struct {
	bar *progressbar.ProgressBar
}

func (s *spinnerBar) Add(num int) error { return s.bar.Add(num) }

func (s *spinnerBar) Describe(description string) error {
	s.bar.Describe(description)
	return nil
}

func (s *spinnerBar) Close() error { return s.bar.Close() }

// listCmd prints the registered parser identities.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the registered parsers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := parser.Default().Names()
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no parsers registered")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

// fieldsCmd prints the metadata field taxonomy.
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Lists the declared metadata fields and their shapes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		taxonomy, err := mwcp.LoadTaxonomy()
		if err != nil {
			return err
		}
		for _, name := range taxonomy.DeclaredOrder() {
			field, _ := taxonomy.Lookup(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", field.Name, field.Shape)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	// Cobra prints the error and exits non-zero if RunE returns an error.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init registers flags and subcommands for the root command.
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search standard locations like ., $HOME/.config/mwcp/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output")

	// Artifact output flags
	rootCmd.Flags().StringP("output-dir", "o", "", "Directory for extracted output files (default is the current directory)")
	rootCmd.Flags().StringP("prefix", "p", "", `Filename prefix for extracted output files ("md5" prefixes with the input sample's MD5)`)
	rootCmd.Flags().BoolP("no-output-files", "w", false, "Track extracted files in the report only, without writing them to disk")
	rootCmd.Flags().Bool("embed", false, "Embed base64 output file payloads in the report metadata")

	// Engine behavior flags
	rootCmd.Flags().BoolP("no-debug", "d", false, "Omit the debug trace from reports")
	rootCmd.Flags().BoolP("no-cleanup", "t", false, "Keep run temp files and log their locations")
	rootCmd.Flags().Bool("no-cascade", false, "Store reported values verbatim without deriving subfields")
	rootCmd.Flags().Bool("no-dedup", false, "Keep repeated metadata values instead of suppressing them")
	rootCmd.Flags().Bool("no-file-info", false, "Do not auto-record input filename and digests")

	// Batch flags
	rootCmd.Flags().StringP("format", "f", string(mwcp.DefaultReportFormat), `Report format ("text", "json")`)
	rootCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories when an input is a directory")
	rootCmd.Flags().StringArray("ignore", []string{}, "Glob patterns for files to skip during directory discovery (can be specified multiple times)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(fieldsCmd)
}
