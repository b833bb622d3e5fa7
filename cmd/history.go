// Package cmd implements the command-line interface for animexin-ctl.
package cmd

import (
	"encoding/json"
	"os"

	"github.com/Atik203/animexin-player-controller-extension/color"
	"github.com/Atik203/animexin-player-controller-extension/history"
	"github.com/Atik203/animexin-player-controller-extension/style"
	"github.com/Atik203/animexin-player-controller-extension/timecode"
	"github.com/Atik203/animexin-player-controller-extension/util"
	"github.com/Atik203/animexin-player-controller-extension/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("series", "s", "", "Only show advances for the given series slug")
	historyCmd.Flags().IntP("limit", "l", 20, "Maximum number of entries to display")
	historyCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON string")

	historyCmd.SetOut(os.Stdout)
}

// historyCmd lists recorded episode advances, newest first.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded episode advances, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			series = lo.Must(cmd.Flags().GetString("series"))
			limit  = lo.Must(cmd.Flags().GetInt("limit"))
			asJson = lo.Must(cmd.Flags().GetBool("json"))
		)

		store, err := history.New(where.HistoryDB())
		handleErr(err)
		defer util.Ignore(store.Close)

		var entries []history.Entry
		if series != "" {
			entries, err = store.BySeries(series, limit)
		} else {
			entries, err = store.Recent(limit)
		}
		handleErr(err)

		if asJson {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			lo.Must0(encoder.Encode(entries))
			return
		}

		if len(entries) == 0 {
			cmd.Println(style.Faint("no advances recorded"))
			return
		}

		for _, entry := range entries {
			position := timecode.Format(entry.PositionSec)
			if entry.DurationSec > 0 {
				position += " / " + timecode.Format(entry.DurationSec)
			}

			cmd.Printf(
				"%s %s %s\n",
				style.Faint(entry.AdvancedAt.Local().Format("2006-01-02 15:04")),
				style.New().Bold(true).Foreground(color.HiPurple).Render(entry.SeriesID),
				style.Faint("at "+position),
			)

			if entry.ToURL != "" {
				cmd.Printf("  %s %s\n", style.Fg(color.Green)("->"), entry.ToURL)
			} else {
				cmd.Printf("  %s\n", style.Faint("(ended without a next episode link)"))
			}
		}
	},
}
