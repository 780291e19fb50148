package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/config"
	"github.com/gzhole/hostguard/internal/logger"
)

var (
	logFilterOperation string
	logFilterResult    string
	logLast            int
	logSummary         bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the hostguard audit log with filtering and summary options.

Examples:
  hostguard log                          # Show all entries
  hostguard log --last 20                # Show last 20 entries
  hostguard log --operation is_rooted    # Show only root evaluations
  hostguard log --result true            # Show only positive results
  hostguard log --summary                # Show counts per operation`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterOperation, "operation", "", "Filter by operation (is_rooted, is_debugged, set_secure_display, restart_process, exit_process, snapshot)")
	logCmd.Flags().StringVar(&logFilterResult, "result", "", "Filter by result (true, false, error, untrusted, ...)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	events, err := readAuditLog(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	filtered := filterEvents(events, logFilterOperation, logFilterResult)
	filtered = lastN(filtered, logLast)

	if logSummary {
		printSummary(out, events)
		return nil
	}

	return render(out, filtered, func(w io.Writer) { printEvents(w, filtered) })
}

func readAuditLog(path string) ([]logger.CheckEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.CheckEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.CheckEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.CheckEvent, operation, result string) []logger.CheckEvent {
	if operation == "" && result == "" {
		return events
	}

	var filtered []logger.CheckEvent
	for _, e := range events {
		if operation != "" && !strings.EqualFold(e.Operation, operation) {
			continue
		}
		if result != "" && !strings.EqualFold(e.Result, result) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func lastN(events []logger.CheckEvent, n int) []logger.CheckEvent {
	if n > 0 && n < len(events) {
		return events[len(events)-n:]
	}
	return events
}

func printEvents(w io.Writer, events []logger.CheckEvent) {
	t := newTable(w, "Time", "Operation", "Result", "Fired", "Error")
	for _, e := range events {
		var fired []string
		for _, p := range e.Probes {
			if p.Detected {
				fired = append(fired, p.Name)
			}
		}
		t.Append(formatTimestamp(e.Timestamp), e.Operation, e.Result, strings.Join(fired, ","), e.Error)
	}
	t.Render()
}

func printSummary(w io.Writer, all []logger.CheckEvent) {
	counts := map[string]map[string]int{}
	errorCount := 0
	for _, e := range all {
		if counts[e.Operation] == nil {
			counts[e.Operation] = map[string]int{}
		}
		counts[e.Operation][e.Result]++
		if e.Error != "" {
			errorCount++
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  hostguard Audit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total events:    %d\n", len(all))
	fmt.Fprintf(w, "  Errors:          %d\n", errorCount)
	fmt.Fprintf(w, "  First event:     %s\n", formatTimestamp(all[0].Timestamp))
	fmt.Fprintf(w, "  Last event:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	t := newTable(w, "Operation", "Result", "Count")
	for _, op := range ops {
		results := make([]string, 0, len(counts[op]))
		for r := range counts[op] {
			results = append(results, r)
		}
		sort.Strings(results)
		for _, r := range results {
			t.Append(op, r, fmt.Sprint(counts[op][r]))
		}
	}
	t.Render()
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
