package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radsched/radsched/internal/metrics"
	"github.com/radsched/radsched/pkg/logger"
	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/diagnostics"
	"github.com/radsched/radsched/pkg/radsched/extractor"
	"github.com/radsched/radsched/pkg/radsched/normalize"
	"github.com/radsched/radsched/pkg/radsched/solver"
	"github.com/radsched/radsched/pkg/radsched/solver/exact"
	"github.com/radsched/radsched/pkg/radsched/solver/heuristic"
)

func solveCmd() *cobra.Command {
	var statePath, outPath, startISO, endISO, backendName string
	var onlyFillRequired bool

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "run a one-shot solve against a state snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(statePath)
			if err != nil {
				return err
			}
			state, warnings := normalize.Normalize(state)
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}

			if backendName != "" {
				state.SolverSettings.Backend = model.SolverBackend(backendName)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info().Msg("interrupt received, cancelling solve")
				cancel()
			}()

			backend := backendForName(state.SolverSettings.Backend)
			driver := solver.NewDriver(backend, cfg.Scheduler.ShardBudget, cfg.Scheduler.GlobalBudget)

			req := solver.Request{
				StartISO:         startISO,
				EndISO:           endISO,
				OnlyFillRequired: onlyFillRequired,
			}

			start := time.Now()
			stopSolve := metrics.SolveStarted()
			result, err := driver.Solve(ctx, state, req, nil)
			duration := time.Since(start)
			stopSolve()
			metrics.RecordSolve(string(backend.Name()), string(result.DebugInfo.SolverStatus), duration)
			if err != nil {
				return fmt.Errorf("solve failed: %w", err)
			}

			manual := manualAssignmentsInRange(state.Assignments, startISO, endISO)
			result.Assignments = extractor.Extract(manual, result.Assignments)

			slots, clinicians := recomputeSlotsAndClinicians(state, startISO, endISO)
			debug := diagnostics.Build(slots, clinicians, result.Assignments)
			debug.SolverStatus = result.DebugInfo.SolverStatus
			debug.TimeMs = result.DebugInfo.TimeMs
			debug.SolutionCount = result.DebugInfo.SolutionCount
			result.DebugInfo = debug

			logger.Info().
				Str("status", string(result.DebugInfo.SolverStatus)).
				Dur("duration", duration).
				Int("assignments", len(result.Assignments)).
				Msg("solve complete")

			return writeSolveResult(outPath, result)
		},
	}

	cmd.Flags().StringVar(&statePath, "state", "", "path to a state snapshot JSON file (- for stdin)")
	cmd.Flags().StringVar(&outPath, "out", "-", "where to write the solve result (- for stdout)")
	cmd.Flags().StringVar(&startISO, "start", "", "solve window start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&endISO, "end", "", "solve window end date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&onlyFillRequired, "only-fill-required", false, "cap each slot at its required count instead of allowing up to every eligible clinician")
	cmd.Flags().StringVar(&backendName, "backend", "", "override the snapshot's solver backend (heuristic|exact)")
	cmd.MarkFlagRequired("state")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func backendForName(name model.SolverBackend) solver.Backend {
	if name == model.BackendExact {
		return exact.New()
	}
	return heuristic.New(nil)
}

func recomputeSlotsAndClinicians(state model.AppState, startISO, endISO string) ([]calendar.SlotInstance, []model.Clinician) {
	overrides := make(map[string]int, len(state.SlotOverridesByKey))
	for k, v := range state.SlotOverridesByKey {
		overrides[k] = v
	}
	clinicians := append([]model.Clinician{}, state.Clinicians...)
	clinicians, _ = calendar.ExpandRecurringOverrides(state.RecurringOverrides, clinicians, startISO, endISO, overrides)

	projector := calendar.NewProjector(state.WeeklyTemplate, state.Holidays, overrides)
	slots, _ := projector.Project(startISO, endISO)
	return slots, clinicians
}

func manualAssignmentsInRange(assignments []model.Assignment, startISO, endISO string) []model.Assignment {
	var out []model.Assignment
	for _, a := range assignments {
		if a.Manual && a.DateISO >= startISO && a.DateISO <= endISO {
			out = append(out, a)
		}
	}
	return out
}

func writeSolveResult(path string, result solver.Result) error {
	var w *os.File
	if path == "-" || path == "" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
