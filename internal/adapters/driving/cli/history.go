package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

var (
	historyPage int
	historyX    float64
	historyY    float64
	historyAt   string
	historyJSON bool
)

var historyCmd = &cobra.Command{
	Use:   "history [document]",
	Short: "Show saved conversations for a document",
	Long: `Shows the AI conversations recorded for a document, newest first.

With --at "page x y" (or the equivalent --page, --x and --y) the lookup is
anchored to a click point: only the conversations attached to the nearest
highlight are shown. Without a point the whole document's history is
listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyPage, "page", "p", -1, "zero-based page of the click point")
	historyCmd.Flags().Float64Var(&historyX, "x", 0, "click x coordinate in document space")
	historyCmd.Flags().Float64Var(&historyY, "y", 0, "click y coordinate in document space")
	historyCmd.Flags().StringVar(&historyAt, "at", "", "click point as \"page x y\"")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}
	if docResolver == nil {
		return errors.New("document resolver not configured")
	}

	ctx := cmd.Context()

	docID, err := docResolver.Resolve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("resolving document: %w", err)
	}

	page, x, y := historyPage, historyX, historyY
	if historyAt != "" {
		page, x, y, err = parsePosition(historyAt)
		if err != nil {
			return err
		}
	}

	var histories []domain.SessionHistory
	if page >= 0 {
		query := domain.PointQuery(page, x, y)
		histories, err = historyService.Resolve(ctx, docID, query)
		if err != nil {
			return fmt.Errorf("history lookup failed: %w", err)
		}
		if histories == nil {
			if historyJSON {
				cmd.Println("[]")
				return nil
			}
			cmd.Println("No highlight near that point.")
			return nil
		}
	} else {
		histories, err = historyService.ForDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("history lookup failed: %w", err)
		}
	}

	if historyJSON {
		return outputHistoryJSON(cmd, histories)
	}
	return outputHistoryTable(cmd, histories)
}

func outputHistoryJSON(cmd *cobra.Command, histories []domain.SessionHistory) error {
	if histories == nil {
		histories = []domain.SessionHistory{}
	}
	data, err := json.MarshalIndent(histories, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputHistoryTable(cmd *cobra.Command, histories []domain.SessionHistory) error {
	if len(histories) == 0 {
		cmd.Println("No saved conversations.")
		return nil
	}

	cmd.Printf("Saved conversations: %d\n", len(histories))
	cmd.Println()
	for i, h := range histories {
		cmd.Printf("  [%d] %s\n", i+1, h.Session.CreatedAt.Format("2006-01-02 15:04"))
		if q := h.Question(); q != "" {
			cmd.Printf("      Q: %s\n", preview(q, 100))
		}
		if a := h.Answer(); a != "" {
			cmd.Printf("      A: %s\n", preview(a, 100))
		}
		cmd.Println()
	}
	return nil
}

// preview flattens a transcript chunk to a single line, truncated to max
// runes.
func preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
