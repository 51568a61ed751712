package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentrun-ai/agentrun/internal/agent"
	"github.com/agentrun-ai/agentrun/internal/config"
	"github.com/agentrun-ai/agentrun/internal/history"
	"github.com/agentrun-ai/agentrun/internal/logging"
)

// ExitCode defines exit codes for the run command.
type ExitCode int

const (
	// ExitSuccess indicates the task completed with status true.
	ExitSuccess ExitCode = 0
	// ExitError indicates a general/unknown error.
	ExitError ExitCode = 1
	// ExitTimeout indicates the run deadline was exceeded.
	ExitTimeout ExitCode = 2
	// ExitTaskFailed indicates the agent reported status false.
	ExitTaskFailed ExitCode = 3
	// ExitNoResult indicates the run finished without a terminal result.
	ExitNoResult ExitCode = 4
)

var (
	runModel        string
	runWorkDir      string
	runReadPaths    []string
	runWritePaths   []string
	runTools        []string
	runSystemPrompt string
	runTimeout      string
	runMaxTurns     int
	runJSON         bool
	runQuiet        bool
	runVerbose      bool
	runNoSave       bool
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Execute a coding task",
	Long: `Execute a coding task through the agent runtime.

File access is confined to the --read and --write whitelists. An empty
whitelist leaves the corresponding access unrestricted.

Examples:
  # Run a task in the current directory
  agentrun run "Fix the failing tests"

  # Confine writes to ./src, reads anywhere
  agentrun run --write ./src "Refactor the parser"

  # JSON report with a deadline
  agentrun run --json -t 10m "Add input validation"`,
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use")
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "Working directory")
	runCmd.Flags().StringArrayVar(&runReadPaths, "read", nil, "Readable path whitelist (repeatable)")
	runCmd.Flags().StringArrayVar(&runWritePaths, "write", nil, "Writable path whitelist (repeatable)")
	runCmd.Flags().StringSliceVar(&runTools, "tools", nil, "Allowed tool names (comma-separated)")
	runCmd.Flags().StringVar(&runSystemPrompt, "system-prompt", "", "Custom system prompt")
	runCmd.Flags().StringVarP(&runTimeout, "timeout", "t", "", "Maximum execution time (e.g., 5m, 1h)")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Maximum agentic loop turns")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the final report as JSON")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress trace output except agent commentary")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show file edit events in the trace")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Don't archive the run report")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")
	if strings.TrimSpace(task) == "" {
		return fmt.Errorf("task required")
	}

	workDir := runWorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		workDir = wd
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)

	a, err := agent.New(agent.Options{
		Model:          cfg.Model,
		WorkDir:        cfg.WorkDir,
		SystemPrompt:   cfg.SystemPrompt,
		ReadablePaths:  cfg.ReadablePaths,
		WritablePaths:  cfg.WritablePaths,
		AllowedTools:   cfg.AllowedTools,
		IgnorePatterns: cfg.IgnorePatterns,
		MaxTurns:       cfg.MaxTurns,
		Timeout:        cfg.Timeout,
		Output:         os.Stdout,
		Quiet:          cfg.Quiet,
		Verbose:        cfg.Verbose,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	startedAt := time.Now().UTC()
	report, err := a.Run(cmd.Context(), task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(os.Stderr, "run timed out")
			os.Exit(int(ExitTimeout))
		}
		return err
	}

	if !runNoSave {
		archiveRun(cfg, task, startedAt, report)
	}

	if runJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else if report.Result != nil {
		fmt.Printf("\nStatus: %v\nSummary: %s\n", report.Result.Status, report.Result.Summary)
		if report.Result.Insights != "" {
			fmt.Printf("Insights: %s\n", report.Result.Insights)
		}
	}

	switch {
	case report.Result == nil:
		os.Exit(int(ExitNoResult))
	case !report.Result.Status:
		os.Exit(int(ExitTaskFailed))
	}
	return nil
}

// archiveRun records the report in the run history. Failures are logged,
// not fatal; the run itself already succeeded or failed on its own terms.
func archiveRun(cfg *config.Config, task string, startedAt time.Time, report *agent.Report) {
	store := history.New(filepath.Join(config.GetPaths().Data, "runs"))
	err := store.Save(&history.Record{
		RunID:      report.RunID,
		Task:       task,
		Model:      cfg.Model,
		WorkDir:    cfg.WorkDir,
		StartedAt:  startedAt,
		Result:     report.Result,
		Diffs:      report.Diffs,
		Denials:    report.Denials,
		NumTurns:   report.NumTurns,
		DurationMS: report.DurationMS,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("failed to archive run report")
	}
}

// applyFlags overlays command-line flags onto the loaded configuration.
// Flags win over config files and environment variables.
func applyFlags(cfg *config.Config) {
	if runModel != "" {
		cfg.Model = runModel
	}
	if runWorkDir != "" {
		cfg.WorkDir = runWorkDir
	}
	if runReadPaths != nil {
		cfg.ReadablePaths = runReadPaths
	}
	if runWritePaths != nil {
		cfg.WritablePaths = runWritePaths
	}
	if runTools != nil {
		cfg.AllowedTools = runTools
	}
	if runSystemPrompt != "" {
		cfg.SystemPrompt = runSystemPrompt
	}
	if runMaxTurns > 0 {
		cfg.MaxTurns = runMaxTurns
	}
	if runTimeout != "" {
		d, err := time.ParseDuration(runTimeout)
		if err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if runQuiet {
		cfg.Quiet = true
	}
	if runVerbose {
		cfg.Verbose = true
	}
}
