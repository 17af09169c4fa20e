package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [document] [question...]", askCmd.Use)
}

func TestAskCmd_Short(t *testing.T) {
	assert.Equal(t, "Ask about a highlighted passage", askCmd.Short)
}

func TestAskCmd_Long(t *testing.T) {
	assert.Contains(t, askCmd.Long, "highlight")
	assert.Contains(t, askCmd.Long, "Without a question")
}

func TestAskCmd_HasPageFlag(t *testing.T) {
	flag := askCmd.Flags().Lookup("page")
	require.NotNil(t, flag, "page flag should exist")
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestAskCmd_HasBoxFlag(t *testing.T) {
	flag := askCmd.Flags().Lookup("box")
	require.NotNil(t, flag, "box flag should exist")
}

func TestAskCmd_RequiresDocument(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestAskCmd_RequiresBox(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "/papers/attention.pdf", "what", "is", "this"})

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--box")
}

func TestAskCmd_InvalidBox(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "/papers/attention.pdf", "--box", "1,2", "question"})

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid box")
}

func TestAskCmd_StreamsAnswer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--page", "2",
		"--box", "100,200,300,220",
		"--text", "scaled dot-product attention",
		"what", "is", "this",
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "The answer is 42.")
}

func TestAskCmd_SelectionEndpoints(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--begin", "2 100 200",
		"--end", "2 300 220",
		"what", "is", "this",
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "The answer is 42.")
}

func TestAskCmd_BeginWithoutEnd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--begin", "2 100 200",
		"why",
	})

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--begin and --end")
}

func TestAskCmd_NotifiesViewer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--box", "100,200,300,220",
		"why",
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, testViewer.statuses, "AI: thinking...")
	assert.Contains(t, testViewer.statuses, "AI: answer ready")
	// A new highlight was written, so the viewer re-reads its annotations
	assert.Equal(t, 1, testViewer.reloads)
}

func TestAskCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--box", "100,200,300,220",
		"--json",
		"what", "is", "this",
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"Created": true`)
	assert.Contains(t, buf.String(), "The answer is 42.")
}

func TestAskCmd_EmptyQuestionShowsHistory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	// Seed one exchange at the region
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--box", "100,200,300,220",
		"what", "is", "this",
	})
	require.NoError(t, rootCmd.Execute())

	// Pointing at the same region without a question replays the history
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"ask", "/papers/attention.pdf",
		"--box", "100,200,300,220",
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Saved conversations: 1")
	assert.Contains(t, buf.String(), "Q: what is this")
	assert.Contains(t, buf.String(), "A: The answer is 42.")
}

func TestAskCmd_NoServices(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "/papers/attention.pdf", "--box", "1,2,3,4", "q"})
	defer func() {
		rootCmd.SetArgs(nil)
		askBoxes = nil
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ask service not configured")
}

func TestParseBoxes(t *testing.T) {
	boxes, err := parseBoxes([]string{"1,2,3,4", " 5.5 , 6 , 7.25 , 8 "})
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, domain.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, boxes[0])
	assert.Equal(t, domain.Rect{Left: 5.5, Top: 6, Right: 7.25, Bottom: 8}, boxes[1])
}

func TestParseBoxes_Invalid(t *testing.T) {
	_, err := parseBoxes([]string{"1,2,3"})
	assert.Error(t, err)

	_, err = parseBoxes([]string{"a,b,c,d"})
	assert.Error(t, err)
}

func TestParseSelection(t *testing.T) {
	rect, page, err := parseSelection("3 100 250", "3 320 210")
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	// Endpoints arrive in reading order but may be swapped vertically
	assert.Equal(t, domain.Rect{Left: 100, Top: 210, Right: 320, Bottom: 250}, rect)
}

func TestParseSelection_ClipsToBeginPage(t *testing.T) {
	_, page, err := parseSelection("3 100 250", "4 320 210")
	require.NoError(t, err)
	assert.Equal(t, 3, page)
}

func TestParsePosition_Invalid(t *testing.T) {
	_, _, _, err := parsePosition("3 100")
	assert.Error(t, err)

	_, _, _, err = parsePosition("x y z")
	assert.Error(t, err)
}
