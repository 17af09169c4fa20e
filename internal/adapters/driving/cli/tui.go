package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [document]",
	Short: "Browse a document's conversations interactively",
	Long: `Launch the interactive terminal browser for a document's saved
conversations.

Controls:
  ↑/k, ↓/j - Navigate conversations
  Enter    - Open a conversation
  a        - Ask a follow-up question
  r        - Refresh
  ?        - Toggle help
  q        - Quit`,
	Args: cobra.ExactArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if historyService == nil {
		return errors.New("history service not configured")
	}
	if docResolver == nil {
		return errors.New("document resolver not configured")
	}

	docID, err := docResolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("resolving document: %w", err)
	}

	ports := &tui.Ports{
		History: historyService,
		Ask:     askService,
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.SetDocument(docID, args[0])
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
