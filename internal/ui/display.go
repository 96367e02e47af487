package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"docchat/internal/api"
	"docchat/internal/chat"
	"docchat/internal/docs"
)

// Display renders the transcript, document list, and status lines
type Display struct {
	width    int
	renderer *glamour.TermRenderer
}

// NewDisplay creates a display sized to the current terminal
func NewDisplay() *Display {
	width := getTerminalWidth()

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)

	return &Display{
		width:    width,
		renderer: renderer,
	}
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ClearScreen clears the terminal
func (d *Display) ClearScreen() {
	fmt.Print("\033[2J\033[H")
}

// PrintWelcome displays the welcome banner
func (d *Display) PrintWelcome(email string) {
	fmt.Printf("%s%s╔══════════════════════════════════════════════╗%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("%s%s║      docchat - ask your documents            ║%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("%s%s╚══════════════════════════════════════════════╝%s\n", colorBold, colorCyan, colorReset)
	if email != "" {
		fmt.Printf("\n%sSigned in as:%s %s\n", colorGray, colorReset, email)
	}
	fmt.Printf("%sCommands:%s /docs | /upload <file...> | /delete <n> | /more | /metrics | /new | /exit\n\n", colorGray, colorReset)
}

// PrintGoodbye displays the goodbye message
func (d *Display) PrintGoodbye() {
	fmt.Printf("\n%sGoodbye!%s\n", colorCyan, colorReset)
}

// PrintError displays an error message
func (d *Display) PrintError(err error) {
	fmt.Printf("%s✗ Error: %v%s\n", colorRed, err, colorReset)
}

// PrintInfo displays an info message
func (d *Display) PrintInfo(msg string) {
	fmt.Printf("%sℹ %s%s\n", colorCyan, msg, colorReset)
}

// PrintWarning displays a warning message
func (d *Display) PrintWarning(msg string) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, msg, colorReset)
}

// PrintSuccess displays a success message
func (d *Display) PrintSuccess(msg string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, msg, colorReset)
}

// PrintPrompt displays the user input prompt
func (d *Display) PrintPrompt() {
	fmt.Printf("\n%s%s❯%s ", colorBold, colorGreen, colorReset)
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	line := strings.Repeat("─", min(d.width, 80))
	fmt.Printf("%s%s%s\n", colorDim, line, colorReset)
}

// PrintExchange renders one question/answer pair
func (d *Display) PrintExchange(ex chat.Exchange) {
	timestamp := ex.CreatedAt.Format("15:04:05")
	fmt.Printf("\n%s┌─ You · %s%s\n", colorGray, timestamp, colorReset)
	fmt.Printf("%s│%s %s\n", colorGray, colorReset, ex.Query)
	fmt.Printf("%s└%s\n", colorGray, colorReset)

	switch ex.State {
	case chat.StatePending:
		fmt.Printf("%s  %s%s\n", colorDim, ex.Answer, colorReset)
	case chat.StateErrored:
		fmt.Printf("%s  %s%s\n", colorRed, ex.Answer, colorReset)
	default:
		d.printAnswer(ex)
	}
}

// printAnswer renders a completed answer with its sources and metrics
func (d *Display) printAnswer(ex chat.Exchange) {
	fmt.Printf("\n%s┌─ Assistant · %s%s\n", colorGray, ex.CreatedAt.Format("15:04:05"), colorReset)

	rendered, err := d.renderer.Render(ex.Answer)
	if err != nil {
		fmt.Println(ex.Answer)
	} else {
		fmt.Print(rendered)
	}

	if len(ex.Sources) > 0 {
		fmt.Printf("%sSources:%s\n", colorGray, colorReset)
		for _, src := range ex.Sources {
			fmt.Printf("%s  - %s (chunk %d, score %.2f)%s\n",
				colorGray, src.FileName, src.ChunkIndex, src.Score, colorReset)
		}
	}

	if ex.Metrics != nil {
		cached := ""
		if ex.Metrics.Cached {
			cached = " · cached"
		}
		fmt.Printf("%s  %s · %d tokens · %d results%s%s\n",
			colorDim, formatMillis(ex.Metrics.TotalRequestTimeMs),
			ex.Metrics.TokensUsed, ex.Metrics.ResultsCount, cached, colorReset)
	}
}

// PrintTranscript renders the full exchange list, oldest first
func (d *Display) PrintTranscript(exchanges []chat.Exchange, hasMore bool) {
	if len(exchanges) == 0 {
		fmt.Printf("%sNo conversation history yet. Ask something!%s\n", colorGray, colorReset)
		return
	}
	if hasMore {
		fmt.Printf("%s(older history available - /more to load)%s\n", colorDim, colorReset)
	}
	for _, ex := range exchanges {
		d.PrintExchange(ex)
	}
}

// PrintDocuments renders the numbered document list
func (d *Display) PrintDocuments(documents []docs.Document) {
	if len(documents) == 0 {
		fmt.Printf("%sNo documents uploaded yet. Use /upload <file.pdf>%s\n", colorGray, colorReset)
		return
	}
	fmt.Printf("\n%s%sDocuments:%s\n", colorBold, colorBlue, colorReset)
	for i, doc := range documents {
		marker := ""
		if doc.IsDeleting {
			marker = colorDim + " (deleting...)" + colorReset
		}
		fmt.Printf("  %2d. %s%s\n", i+1, doc.FileName, marker)
	}
}

// PrintUploadProgress renders one upload progress update on its own line
func (d *Display) PrintUploadProgress(p docs.Progress) {
	switch p.State {
	case docs.UploadUploading:
		fmt.Printf("%s⇡ uploading %s%s\n", colorCyan, p.Current, colorReset)
	case docs.UploadProcessing:
		fmt.Printf("%s⚙ processing %s%s\n", colorCyan, p.Current, colorReset)
	case docs.UploadDone:
		fmt.Printf("%s✓ %s (%d/%d)%s\n", colorGreen, p.Current, p.Completed, p.Total, colorReset)
	case docs.UploadFailed:
		fmt.Printf("%s✗ %s: %v (%d/%d)%s\n", colorRed, p.Current, p.Err, p.Completed, p.Total, colorReset)
	}
}

// PrintBatchSummary renders the final counts for an upload batch
func (d *Display) PrintBatchSummary(result docs.BatchResult) {
	if len(result.Successful) > 0 {
		d.PrintSuccess(fmt.Sprintf("%d file(s) uploaded successfully", len(result.Successful)))
	}
	for _, f := range result.Failed {
		d.PrintError(fmt.Errorf("%s failed at %s: %v", f.FileName, f.Step, f.Err))
	}
}

// PrintMetrics renders the backend performance snapshot
func (d *Display) PrintMetrics(report api.MetricsReport) {
	fmt.Printf("\n%s%sBackend performance%s\n", colorBold, colorBlue, colorReset)
	d.printMetricSection("Performance", report.Performance)
	d.printMetricSection("Cache", report.Cache)
	d.printMetricSection("System", report.System)
}

func (d *Display) printMetricSection(title string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	fmt.Printf("%s%s:%s\n", colorGray, title, colorReset)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-24s %v\n", k, values[k])
	}
}

// formatMillis renders a duration in ms or seconds
func formatMillis(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	return fmt.Sprintf("%.1fs", ms/1000)
}

// getTerminalWidth returns the terminal width, defaulting to 80
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Spinner shows indeterminate progress while a request is in flight
type Spinner struct {
	done chan bool
}

// StartSpinner begins a spinner with the given message
func (d *Display) StartSpinner(msg string) *Spinner {
	s := &Spinner{done: make(chan bool)}
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		for {
			select {
			case <-s.done:
				fmt.Printf("\r\033[2K")
				return
			default:
				fmt.Printf("\r%s%s %s%s", colorCyan, frames[i], msg, colorReset)
				i = (i + 1) % len(frames)
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
	return s
}

// Stop halts the spinner and clears its line
func (s *Spinner) Stop() {
	s.done <- true
	time.Sleep(10 * time.Millisecond)
}
