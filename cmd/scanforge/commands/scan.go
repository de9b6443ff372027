package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/pkg/adaptive"
	"github.com/scanforge/scanforge/pkg/appctx"
	"github.com/scanforge/scanforge/pkg/config"
	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/output"
	"github.com/scanforge/scanforge/pkg/scanerr"
	"github.com/scanforge/scanforge/pkg/scanexec"
)

// Flags for the scan command, following the teacher's package-level flag
// variable convention in cmd/pentora/commands/scan.go.
var (
	scanPorts         string
	scanKind          string
	scanTimeoutMS     int64
	scanRateMS        int64
	scanParallelism   int
	scanParallelHosts int
	scanOutputFormat  string
	scanOutputFile    string
	scanColor         bool
	scanNoColor       bool
	scanSkipDiscovery bool
	scanProgress      bool
)

// NewScanCommand defines the 'scan' command: the one invocation surface
// spec.md §6 describes, adapted from the teacher's ScanCmd (which drove a
// DAG planner) to drive pkg/scanexec.Service directly.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan <targets>",
		Short:   "Scan targets for open ports",
		GroupID: "scan",
		Args:    cobra.ExactArgs(1),
		RunE:    runScan,
	}

	cmd.Flags().StringVarP(&scanPorts, "ports", "p", "top100", "Port spec: literals, ranges, or named groups (common|top100|web|mail|db)")
	cmd.Flags().StringVarP(&scanKind, "scan-kind", "k", "connect", "Scan kind: connect, syn, udp, fin, xmas, null")
	cmd.Flags().Int64Var(&scanTimeoutMS, "timeout-ms", 0, "Per-probe timeout in milliseconds (0 uses the configured default)")
	cmd.Flags().Int64Var(&scanRateMS, "rate-ms", -1, "Inter-probe pacing in milliseconds (-1 uses the configured default)")
	cmd.Flags().IntVar(&scanParallelism, "parallelism", 0, "Per-host concurrent probe count (0 uses the configured default)")
	cmd.Flags().IntVar(&scanParallelHosts, "parallel-hosts", 0, "Number of hosts scanned concurrently (0 uses the configured default)")
	cmd.Flags().StringVarP(&scanOutputFormat, "output", "o", "human", "Output format: human, json, xml, csv")
	cmd.Flags().StringVar(&scanOutputFile, "output-file", "", "Write the report to this path instead of stdout")
	cmd.Flags().BoolVar(&scanColor, "color", false, "Force colour output")
	cmd.Flags().BoolVar(&scanNoColor, "no-color", false, "Disable colour output")
	cmd.Flags().BoolVar(&scanSkipDiscovery, "skip-discovery", false, "Skip the ICMP host-discovery pre-pass and probe every target directly")
	cmd.Flags().BoolVar(&scanProgress, "progress", false, "Print live progress updates during the scan")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if manager, ok := appctx.Config(cmd.Context()); ok {
		cfg = manager.Get()
	}

	kind, err := parseScanKind(scanKind)
	if err != nil {
		return err
	}

	params := scanexec.Params{
		TargetSpec:    args[0],
		PortSpec:      scanPorts,
		ScanKind:      kind,
		TimeoutMS:     cfg.Scan.TimeoutMS,
		RateMS:        cfg.Scan.RateMS,
		Parallelism:   cfg.Scan.Parallelism,
		ParallelHosts: cfg.Scan.ParallelHosts,
		OutputFormat:  output.Format(strings.ToLower(scanOutputFormat)),
		OutputPath:    scanOutputFile,
		Color:         resolveColor(),
		SkipDiscovery: scanSkipDiscovery,
	}
	if cmd.Flags().Changed("timeout-ms") && scanTimeoutMS != 0 {
		params.TimeoutMS = scanTimeoutMS
	}
	if cmd.Flags().Changed("rate-ms") && scanRateMS != -1 {
		params.RateMS = scanRateMS
	}
	if cmd.Flags().Changed("parallelism") && scanParallelism != 0 {
		params.Parallelism = scanParallelism
	}
	if cmd.Flags().Changed("parallel-hosts") && scanParallelHosts != 0 {
		params.ParallelHosts = scanParallelHosts
	}

	defaults := adaptive.Params{
		TimeoutMS:   params.TimeoutMS,
		RateMS:      params.RateMS,
		Parallelism: params.Parallelism,
	}

	svc := scanexec.NewService(defaults, cfg.Scan.LearningRate, cfg.Scan.MinScansToAdapt)
	if scanProgress {
		svc.ProgressSink = &progressLogger{}
	}

	var store *adaptive.Store
	if cfg.Scan.AdaptiveStatePath != "" {
		store = adaptive.NewStore(cfg.Scan.AdaptiveStatePath)
		state, loadErr := store.Load(cfg.Scan.LearningRate, cfg.Scan.MinScansToAdapt)
		if loadErr != nil {
			log.Warn().Err(loadErr).Msg("adaptive state cold start")
		} else {
			svc.WithAdaptiveState(state)
		}
	}

	result, err := svc.Run(cmd.Context(), params)
	if store != nil {
		if saveErr := store.Save(svc.Adaptive); saveErr != nil {
			log.Warn().Err(saveErr).Msg("failed to persist adaptive state")
		}
	}
	if err != nil {
		return err
	}

	renderer, err := output.New(params.OutputFormat, params.Color)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if params.OutputPath != "" {
		f, openErr := os.Create(params.OutputPath)
		if openErr != nil {
			return fmt.Errorf("open output file %q: %w", params.OutputPath, openErr)
		}
		defer f.Close()
		w = f
	}

	return renderer.Render(w, result)
}

// parseScanKind validates the --scan-kind flag against the family spec.md
// §6 names, returning a SpecError (exit code 1) on anything else.
func parseScanKind(s string) (model.ScanKind, error) {
	switch model.ScanKind(strings.ToLower(s)) {
	case model.ScanConnect, model.ScanSYN, model.ScanFIN, model.ScanXMAS, model.ScanNULL, model.ScanUDP:
		return model.ScanKind(strings.ToLower(s)), nil
	default:
		return "", scanerr.SpecError("unknown scan kind %q", s)
	}
}

// resolveColor honours explicit --color/--no-color overrides before falling
// back to terminal auto-detection (pkg/output.AutoColor).
func resolveColor() bool {
	switch {
	case scanNoColor:
		return false
	case scanColor:
		return true
	default:
		return output.AutoColor()
	}
}

type progressLogger struct{}

func (p *progressLogger) OnEvent(ev scanexec.ProgressEvent) {
	log.Info().Str("phase", ev.Phase).Str("message", ev.Message).Msg("scan progress")
}
