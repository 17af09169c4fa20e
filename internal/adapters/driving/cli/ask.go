package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

var (
	askPage    int
	askBoxes   []string
	askBegin   string
	askEnd     string
	askText    string
	askTitle   string
	askSection string
	askSnippet string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [document] [question...]",
	Short: "Ask about a highlighted passage",
	Long: `Anchors a question to the selected region of a document and streams
the model's answer. The selection reuses an existing highlight when one
covers the same region; otherwise a new highlight is written.

Without a question the command shows the conversations already anchored
near the selection instead of contacting the model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askPage, "page", "p", 0, "zero-based page of the selection")
	askCmd.Flags().StringArrayVar(&askBoxes, "box", nil, "selection box as left,top,right,bottom (repeatable)")
	askCmd.Flags().StringVar(&askBegin, "begin", "", "selection start as \"page x y\"")
	askCmd.Flags().StringVar(&askEnd, "end", "", "selection end as \"page x y\"")
	askCmd.Flags().StringVar(&askText, "text", "", "selected text")
	askCmd.Flags().StringVar(&askTitle, "title", "", "document title for the prompt")
	askCmd.Flags().StringVar(&askSection, "section", "", "section heading for the prompt")
	askCmd.Flags().StringVar(&askSnippet, "snippet", "", "context text around the selection")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}
	if docResolver == nil {
		return errors.New("document resolver not configured")
	}

	boxes, err := parseBoxes(askBoxes)
	if err != nil {
		return err
	}
	page := askPage
	if askBegin != "" || askEnd != "" {
		rect, beginPage, err := parseSelection(askBegin, askEnd)
		if err != nil {
			return err
		}
		page = beginPage
		boxes = append(boxes, rect)
	}
	if len(boxes) == 0 {
		return errors.New("a selection is required: pass --box or --begin/--end")
	}

	ctx := cmd.Context()
	docPath := args[0]

	docID, err := docResolver.Resolve(ctx, docPath)
	if err != nil {
		return fmt.Errorf("resolving document: %w", err)
	}

	question := strings.TrimSpace(strings.Join(args[1:], " "))

	req := driving.AskRequest{
		DocumentID:   docID,
		DocumentPath: docPath,
		Region:       domain.Region{Page: page, Boxes: boxes},
		SelectedText: askText,
		Question:     question,
		Snippet: domain.ContextSnippet{
			Text:     askSnippet,
			Title:    askTitle,
			FileName: filepath.Base(docPath),
			Section:  askSection,
		},
	}

	// Stream fragments straight to the terminal unless the caller asked
	// for structured output.
	var printed int
	if question != "" && !askJSON {
		req.OnFragment = func(accumulated string) {
			if len(accumulated) > printed {
				cmd.Print(accumulated[printed:])
				printed = len(accumulated)
			}
		}
	}

	if question != "" {
		setViewerStatus(ctx, "AI: thinking...")
	}

	result, askErr := askService.Ask(ctx, req)
	if result != nil && result.Created {
		// A new highlight exists on disk; the viewer has to re-read its
		// annotation table to show it.
		reloadViewer(ctx)
	}

	if askErr != nil {
		setViewerStatus(ctx, "AI: request failed")
		if printed > 0 {
			cmd.Println()
		}
		return fmt.Errorf("ask failed: %w", askErr)
	}

	if question != "" {
		setViewerStatus(ctx, "AI: answer ready")
	}

	if askJSON {
		return outputAskJSON(cmd, result)
	}

	if result.ShortCircuited {
		return outputHistoryTable(cmd, result.History)
	}

	if printed > 0 {
		cmd.Println()
	}
	return nil
}

// parseBoxes converts repeated --box values into rectangles.
func parseBoxes(specs []string) ([]domain.Rect, error) {
	boxes := make([]domain.Rect, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid box %q: want left,top,right,bottom", spec)
		}
		var vals [4]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid box %q: %w", spec, err)
			}
			vals[i] = v
		}
		boxes = append(boxes, domain.Rect{Left: vals[0], Top: vals[1], Right: vals[2], Bottom: vals[3]})
	}
	return boxes, nil
}

// parseSelection converts --begin/--end endpoint positions into a single
// bounding box. Selections that span pages are clipped to the page the
// selection starts on.
func parseSelection(begin, end string) (domain.Rect, int, error) {
	if begin == "" || end == "" {
		return domain.Rect{}, 0, errors.New("--begin and --end must be given together")
	}
	page, bx, by, err := parsePosition(begin)
	if err != nil {
		return domain.Rect{}, 0, err
	}
	_, ex, ey, err := parsePosition(end)
	if err != nil {
		return domain.Rect{}, 0, err
	}
	rect := domain.Rect{Left: bx, Top: by, Right: ex, Bottom: ey}.Normalised()
	return rect, page, nil
}

// parsePosition parses the viewer's "page x y" position form.
func parsePosition(pos string) (int, float64, float64, error) {
	parts := strings.Fields(pos)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid position %q: want \"page x y\"", pos)
	}
	page, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid position %q: %w", pos, err)
	}
	x, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid position %q: %w", pos, err)
	}
	y, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid position %q: %w", pos, err)
	}
	return page, x, y, nil
}

func outputAskJSON(cmd *cobra.Command, result *driving.AskResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// setViewerStatus pushes a status-bar message to the viewer. Best effort:
// the viewer may not be running, or not configured at all.
func setViewerStatus(ctx context.Context, message string) {
	if viewerControl == nil {
		return
	}
	if err := viewerControl.SetStatus(ctx, message); err != nil {
		logger.Debug("Viewer status update failed: %v", err)
	}
}

// reloadViewer asks the viewer to re-read its annotations. Best effort.
func reloadViewer(ctx context.Context) {
	if viewerControl == nil {
		return
	}
	if err := viewerControl.Reload(ctx); err != nil {
		logger.Debug("Viewer reload failed: %v", err)
	}
}
