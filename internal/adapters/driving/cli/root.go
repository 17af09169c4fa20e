// Package cli implements the command-line interface using cobra.
// Commands are thin: they parse flags, call the driving ports, and format
// output. All behaviour lives in the core services.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Services bundles the dependencies the commands need. Viewer is optional;
// commands degrade to plain output when it is nil.
type Services struct {
	Ask      driving.AskService
	History  driving.HistoryService
	Resolver driven.DocumentResolver
	Viewer   driven.ViewerControl
}

var (
	askService     driving.AskService
	historyService driving.HistoryService
	docResolver    driven.DocumentResolver
	viewerControl  driven.ViewerControl
)

// SetServices wires the core services into the commands. Must be called
// before Execute.
func SetServices(s Services) {
	askService = s.Ask
	historyService = s.History
	docResolver = s.Resolver
	viewerControl = s.Viewer
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Anchor AI conversations to PDF highlights",
	Long: `Marginalia links AI conversations to highlighted regions of PDF
documents. Questions about a selection are anchored to a highlight in the
viewer's annotation database, so pointing at the same passage later brings
the conversation back.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
