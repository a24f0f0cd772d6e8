package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/normalize"
)

func validateCmd() *cobra.Command {
	var statePath, outPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "normalize a state snapshot and report warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(statePath)
			if err != nil {
				return err
			}

			normalized, warnings := normalize.Normalize(state)

			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if len(warnings) == 0 {
				fmt.Fprintln(os.Stderr, "state is already normalized")
			}

			return writeState(outPath, normalized)
		},
	}

	cmd.Flags().StringVar(&statePath, "state", "", "path to a state snapshot JSON file (- for stdin)")
	cmd.Flags().StringVar(&outPath, "out", "-", "where to write the normalized snapshot (- for stdout)")
	cmd.MarkFlagRequired("state")

	return cmd
}

func loadState(path string) (model.AppState, error) {
	var r *os.File
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return model.AppState{}, fmt.Errorf("open state file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var state model.AppState
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return model.AppState{}, fmt.Errorf("decode state file: %w", err)
	}
	return state, nil
}

func writeState(path string, state model.AppState) error {
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
	return enc.Encode(state)
}
