package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gpavault/internal/gpa/service"
)

func newSaveCommand(e *env) *cobra.Command {
	var (
		pairs    []string
		jsonFile string
		policy   string
	)
	cmd := &cobra.Command{
		Use:   "save <registration-number>",
		Short: "Create or update a GPA record",
		Example: `  gpactl save 2021CS17 --gpa sem1=3.5 --gpa sem2=3.9
  gpactl save 2021CS17 --file gpas.json --policy replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gpas, err := collectGpas(pairs, jsonFile)
			if err != nil {
				return err
			}
			return e.withService(cmd.Context(), policy, func(svc *service.Service) error {
				if err := svc.UpsertGpas(cmd.Context(), args[0], gpas); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "saved %d semester(s) for %s (%s)\n", len(gpas), args[0], svc.Policy())
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "gpa", nil, "Semester GPA as label=value (repeatable)")
	cmd.Flags().StringVarP(&jsonFile, "file", "f", "", "JSON object of semester GPAs")
	cmd.Flags().StringVar(&policy, "policy", "", "Override the upsert policy (merge|replace)")
	return cmd
}

func newGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <registration-number>",
		Short: "Print a GPA record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(cmd.Context(), "", func(svc *service.Service) error {
				record, err := svc.GetRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(e.out)
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			})
		},
	}
}

// collectGpas merges --file (applied first) and --gpa pairs.
func collectGpas(pairs []string, jsonFile string) (map[string]float64, error) {
	gpas := map[string]float64{}
	if jsonFile != "" {
		data, err := os.ReadFile(jsonFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", jsonFile, err)
		}
		var fromFile map[string]float64
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonFile, err)
		}
		maps.Copy(gpas, fromFile)
	}
	for _, pair := range pairs {
		label, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --gpa %q: want label=value", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --gpa %q: %w", pair, err)
		}
		gpas[strings.TrimSpace(label)] = value
	}
	if len(gpas) == 0 {
		return nil, fmt.Errorf("no GPAs given: use --gpa or --file")
	}
	return gpas, nil
}
