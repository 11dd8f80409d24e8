// Command mirrorctl runs the archetype engine offline.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/mirror-agent/internal/app/mirror"
	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// Version information (set at build time)
var version = "dev"

type analyzeOutput struct {
	Signals    *domain.SignalRecord    `json:"signals"`
	Confidence domain.ConfidenceScores `json:"confidence"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var catalogPath string

	rootCmd := &cobra.Command{
		Use:          "mirrorctl",
		Short:        "Inspect how the archetype engine reads a message",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "YAML archetype catalog (default: built-in)")

	loadCatalog := func() (*archetype.Catalog, error) {
		if catalogPath == "" {
			return archetype.Default(), nil
		}
		return archetype.LoadFile(catalogPath)
	}

	var historyPath string
	analyzeCmd := &cobra.Command{
		Use:   "analyze [message]",
		Short: "Extract the five signals and confidence for a message",
		Long: `Extract the five signals and confidence for a message.

--history takes a JSON array of previous signal records, most recent first,
as returned by GET /mirror/signals.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			history, err := readHistory(historyPath)
			if err != nil {
				return err
			}

			svc := mirror.NewService(catalog, nil, nil, nil, nil)
			rec, scores, err := svc.Analyze(strings.Join(args, " "), history)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analyzeOutput{Signals: rec, Confidence: scores})
		},
	}
	analyzeCmd.Flags().StringVar(&historyPath, "history", "", "JSON file with previous signal records")

	archetypesCmd := &cobra.Command{
		Use:   "archetypes",
		Short: "List the archetypes in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			return printArchetypes(cmd.OutOrStdout(), catalog)
		},
	}

	rootCmd.AddCommand(analyzeCmd, archetypesCmd)
	return rootCmd
}

func readHistory(path string) ([]*domain.SignalRecord, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var history []*domain.SignalRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", path, err)
	}
	return history, nil
}

func printArchetypes(w io.Writer, catalog *archetype.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCORE RESONANCE\tTRANSFORMATION KEY")
	for _, a := range catalog.Archetypes() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.CoreResonance, a.TransformationKey)
	}
	return tw.Flush()
}
