package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miradorstack/uavlog-analyst/internal/config"
	"github.com/miradorstack/uavlog-analyst/internal/flight"
	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

type analyzeFlags struct {
	telemetryPath string
	hint          string
	rank          bool
	format        string
	window        string
	noColor       bool
}

// windowMetric is the record key for the --window altitude average.
const windowMetric = "altitude_window_mean_m"

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print flight metrics and anomaly flags for a telemetry file",
		Long: "Computes the metric catalogue and anomaly detectors offline. With --rank the\n" +
			"embedding service also selects the fields most relevant to --hint.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.format != "json" && f.format != "text" {
				return fmt.Errorf("unknown format %q (want json or text)", f.format)
			}
			if _, _, err := parseWindow(f.window); err != nil {
				return err
			}
			if f.noColor {
				color.NoColor = true
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, f)
		},
	}
	cmd.Flags().StringVarP(&f.telemetryPath, "telemetry", "t", "", "Path to a parsed telemetry JSON file (- for stdin)")
	cmd.Flags().StringVar(&f.hint, "hint", "", "Question used to rank fields (requires --rank)")
	cmd.Flags().BoolVar(&f.rank, "rank", false, "Rank fields with the embedding and rerank services")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "Output format: json or text")
	cmd.Flags().StringVar(&f.window, "window", "", "Also report mean altitude between start:end seconds of boot time")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	_ = cmd.MarkFlagRequired("telemetry")
	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, f analyzeFlags) error {
	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)

	raw, err := readTelemetry(cmd.InOrStdin(), f.telemetryPath)
	if err != nil {
		return err
	}

	deps, err := wire(cfg, logger, wireOptions{ranker: f.rank})
	if err != nil {
		return err
	}
	defer deps.close()

	ctx := cmd.Context()
	tree := telemetry.FromValue(raw)
	var result models.AnalysisResult
	if f.rank {
		result, err = deps.pipeline.Analyze(ctx, models.AnalysisRequest{Telemetry: raw, Hint: f.hint})
		if err != nil {
			return err
		}
	} else {
		result = deps.pipeline.Inspect(ctx, tree)
	}

	if f.window != "" {
		start, end, _ := parseWindow(f.window)
		if avg, ok := flight.AverageAltitudeWindow(tree, start, end); ok {
			result.Metrics[windowMetric] = avg
		} else {
			logger.Warn("no altitude samples in window", slog.String("window", f.window))
		}
	}

	out := cmd.OutOrStdout()
	if f.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printReport(out, result, f.rank)
	return nil
}

// parseWindow reads "start:end" in seconds. An empty string is no window.
func parseWindow(s string) (start, end float64, err error) {
	if s == "" {
		return 0, 0, nil
	}
	lo, hi, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, fmt.Errorf("window %q must be start:end", s)
	}
	if start, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
		return 0, 0, fmt.Errorf("window start: %w", err)
	}
	if end, err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
		return 0, 0, fmt.Errorf("window end: %w", err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("window %q ends before it starts", s)
	}
	return start, end, nil
}

func readTelemetry(stdin io.Reader, path string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("telemetry must be a JSON object: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("telemetry file %s is empty", path)
	}
	return raw, nil
}

func printReport(w io.Writer, res models.AnalysisResult, ranked bool) {
	heading := color.New(color.Bold, color.FgCyan)
	warn := color.New(color.FgYellow)
	ok := color.New(color.FgGreen)

	heading.Fprintln(w, "Flight metrics")
	if len(res.Metrics) == 0 {
		fmt.Fprintln(w, "  (none computable)")
	}
	keys := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-28s %12.2f\n", k, res.Metrics[k])
	}
	if d, found := res.Metrics["flight_duration_s"]; found {
		fmt.Fprintf(w, "  %-28s %12s\n", "flight_duration", utils.HumanSeconds(d))
	}

	fmt.Fprintln(w)
	heading.Fprintf(w, "Anomaly flags (%d)\n", len(res.Anomalies))
	if len(res.Anomalies) == 0 {
		ok.Fprintln(w, "  No anomalies flagged.")
	}
	for _, s := range res.AnomalySummary {
		warn.Fprintf(w, "  %-24s %-15s", s.Feature, s.Pattern)
		fmt.Fprintf(w, " count=%-5d first=%-6d last=%-6d peak=%.2f\n", s.Count, s.FirstIndex, s.LastIndex, s.Peak)
	}

	if ranked {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Relevant fields")
		fmt.Fprintln(w, telemetry.Summarize(res.ExtractedSample))
	}
}
