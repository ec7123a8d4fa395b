package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/nightshift-sh/nightshift/internal/blockerlog"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show blocker log and configuration for the current project",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, _ := loadConfig(logger.NewNoOpLogger())

	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get working directory")
	}

	writer := blockerlog.NewWriter(cfg.GetDivert(), workDir)

	stats, err := writer.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat blocker log")
	}

	divert := cfg.GetDivert()
	cont := cfg.GetContinuation()

	t := tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleRounded),
		})),
		tablewriter.WithPadding(tw.Padding{Left: " ", Right: " "}),
	)

	t.Header([]string{"Setting", "Value"})

	rows := [][]string{
		{"Divert enabled", strconv.FormatBool(divert.IsEnabled())},
		{"Blockers file", stats.Path},
		{"Recorded blockers", strconv.Itoa(stats.Records)},
		{"Log size", humanize.Bytes(uint64(stats.SizeBytes))},
		{"Rotated backups", strconv.Itoa(stats.Backups)},
		{"Max blockers per run", strconv.Itoa(divert.GetMaxBlockersPerRun())},
		{"Dedup cooldown", divert.GetCooldown().String()},
		{"Max reprompts", strconv.Itoa(cont.GetMaxReprompts())},
		{"Reprompt window", cont.GetRepromptWindow().String()},
		{"Reprompt cooldown", cont.GetCooldown().String()},
		{"Completion marker", cont.GetCompletionMarker()},
	}

	if !stats.ModTime.IsZero() {
		rows = append(rows, []string{"Last blocker", humanize.Time(stats.ModTime)})
	}

	for _, row := range rows {
		if appendErr := t.Append(row); appendErr != nil {
			return errors.Wrap(appendErr, "failed to build status table")
		}
	}

	if err := t.Render(); err != nil {
		return errors.Wrap(err, "failed to render status table")
	}

	if stats.Records == 0 {
		fmt.Println("\nNo blockers recorded for this project.")
	}

	return nil
}
