// Package cmd implements the command-line interface for animexin-ctl.
package cmd

import (
	"encoding/json"
	"os"

	"github.com/Atik203/animexin-player-controller-extension/color"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/network"
	"github.com/Atik203/animexin-player-controller-extension/page"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/Atik203/animexin-player-controller-extension/style"
	"github.com/Atik203/animexin-player-controller-extension/surface"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("page", "p", "", "URL of the watch page to inspect")
	lo.Must0(inspectCmd.MarkFlagRequired("page"))
	inspectCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON string")

	inspectCmd.SetOut(os.Stdout)
}

// inspectCmd fetches a watch page and reports what the session would see.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Fetch a watch page and report its playback surface, servers and navigation targets",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			pageURL = lo.Must(cmd.Flags().GetString("page"))
			asJson  = lo.Must(cmd.Flags().GetBool("json"))
		)

		doc, err := network.FetchDocumentCached(cmd.Context(), pageURL)
		handleErr(err)

		priorities := viper.GetStringSlice(key.ServerPriorities)
		surf, found := surface.NewLocator(doc, nil).Probe()

		report := struct {
			SeriesID string              `json:"series_id"`
			Surface  string              `json:"surface"`
			FrameSrc string              `json:"frame_src,omitempty"`
			Servers  []page.ServerChoice `json:"servers"`
			NextURL  string              `json:"next_url,omitempty"`
		}{
			SeriesID: prefs.SeriesID(doc.URL()),
			Servers:  page.ServerChoices(doc, priorities),
			NextURL:  page.NextEpisodeURL(doc).OrElse(""),
		}

		report.Surface = surf.Kind.String()
		if !found {
			report.Surface = "none"
		} else if surf.Frame != nil {
			report.FrameSrc, _ = surf.Frame.Attr("src")
		}

		if asJson {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			lo.Must0(encoder.Encode(report))
			return
		}

		header := style.New().Bold(true).Foreground(color.HiPurple).Render

		cmd.Printf("%s %s\n", header("Series"), report.SeriesID)
		cmd.Printf("%s %s\n", header("Surface"), report.Surface)
		if report.FrameSrc != "" {
			cmd.Printf("%s %s\n", header("Frame"), style.Faint(report.FrameSrc))
		}

		cmd.Println(header("Servers"))
		if len(report.Servers) == 0 {
			cmd.Println(style.Faint("  (no server dropdown on this page)"))
		}
		for _, choice := range report.Servers {
			marker := " "
			label := choice.Label
			if choice.Preferred {
				marker = style.Fg(color.Green)("*")
				label = style.Bold(label)
			}
			cmd.Printf("  %s %s\n", marker, label)
		}

		if report.NextURL != "" {
			cmd.Printf("%s %s\n", header("Next episode"), report.NextURL)
		} else {
			cmd.Printf("%s %s\n", header("Next episode"), style.Faint("(none)"))
		}
	},
}
