// Package cmd implements the command-line interface for animexin-ctl.
package cmd

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/Atik203/animexin-player-controller-extension/color"
	"github.com/Atik203/animexin-player-controller-extension/icon"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/Atik203/animexin-player-controller-extension/style"
	"github.com/Atik203/animexin-player-controller-extension/timecode"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(prefsCmd)

	prefsCmd.PersistentFlags().StringP("series", "s", "", "Series slug the preferences belong to")
	prefsCmd.PersistentFlags().StringP("url", "u", "", "Watch page URL to derive the series slug from")
	prefsCmd.MarkFlagsMutuallyExclusive("series", "url")
}

// prefsCmd serves as the parent command for per-series skip preferences.
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage per-series intro/outro skip preferences",
}

// prefsSeries resolves the series slug from the --series or --url flag.
func prefsSeries(cmd *cobra.Command) string {
	series := lo.Must(cmd.Flags().GetString("series"))
	pageURL := lo.Must(cmd.Flags().GetString("url"))

	if series != "" {
		return series
	}
	if pageURL != "" {
		return prefs.SeriesID(pageURL)
	}

	handleErr(errors.New("a series is required via --series or --url"))
	return ""
}

// timecodeValidator accepts an empty answer or a valid m:ss timecode.
func timecodeValidator(ans any) error {
	s, ok := ans.(string)
	if !ok || s == "" {
		return nil
	}
	_, err := timecode.Parse(s)
	return err
}

// formatOrUnset renders a stored offset for display.
func formatOrUnset(seconds int) string {
	if seconds <= 0 {
		return style.Faint("(not set)")
	}
	return style.Bold(timecode.Format(float64(seconds)))
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
}

// prefsShowCmd displays the stored skip configuration for a series.
var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the stored skip configuration for a series",
	Run: func(cmd *cobra.Command, args []string) {
		series := prefsSeries(cmd)
		p := prefs.NewStore().Load(series)

		header := style.New().Bold(true).Foreground(color.HiPurple).Render

		fmt.Printf("%s %s\n", header("Series"), p.SeriesID)
		fmt.Printf("%s %s\n", header("Intro skip start"), formatOrUnset(p.IntroSkipStartSec))
		fmt.Printf("%s %s\n", header("Outro start"), formatOrUnset(p.OutroStartSec))
		fmt.Printf("%s %s\n", header("Outro fallback duration"), formatOrUnset(p.OutroFallbackDurationSec))
		if !p.UpdatedAt.IsZero() {
			fmt.Printf("%s %s\n", header("Updated"), style.Faint(p.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
	},
}

func init() {
	prefsCmd.AddCommand(prefsSetCmd)

	prefsSetCmd.Flags().String("intro", "", "Intro skip start as a timecode (e.g. 1:30)")
	prefsSetCmd.Flags().String("outro", "", "Explicit outro start as a timecode (e.g. 17:49)")
	prefsSetCmd.Flags().String("fallback", "", "Outro fallback duration as a timecode (e.g. 1:30)")
}

// prefsSetCmd updates the skip configuration for a series.
// Without value flags it prompts for each field interactively.
var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the skip configuration for a series",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			series   = prefsSeries(cmd)
			intro    = lo.Must(cmd.Flags().GetString("intro"))
			outro    = lo.Must(cmd.Flags().GetString("outro"))
			fallback = lo.Must(cmd.Flags().GetString("fallback"))
		)

		store := prefs.NewStore()
		p := store.Load(series)

		interactive := !cmd.Flags().Changed("intro") &&
			!cmd.Flags().Changed("outro") &&
			!cmd.Flags().Changed("fallback")

		if interactive {
			ask := func(message, current string) string {
				var response string
				input := survey.Input{
					Message: message,
					Default: current,
					Help:    "Timecode in m:ss format; leave empty to unset",
				}
				err := survey.AskOne(&input, &response, survey.WithValidator(timecodeValidator))
				handleErr(err)
				return response
			}

			intro = ask("Intro skip start", displayOffset(p.IntroSkipStartSec))
			outro = ask("Explicit outro start", displayOffset(p.OutroStartSec))
			fallback = ask("Outro fallback duration", displayOffset(p.OutroFallbackDurationSec))
		}

		assign := func(field string, raw string, target *int) {
			if raw == "" {
				*target = 0
				return
			}
			seconds, err := timecode.Parse(raw)
			if err != nil {
				handleErr(fmt.Errorf("%s: %w", field, err))
			}
			*target = seconds
		}

		assign("intro", intro, &p.IntroSkipStartSec)
		assign("outro", outro, &p.OutroStartSec)
		assign("fallback", fallback, &p.OutroFallbackDurationSec)

		handleErr(store.Save(p))
		fmt.Printf(
			"%s saved skip preferences for %s\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			style.Fg(color.Purple)(series),
		)
	},
}

// displayOffset renders a stored offset as a prompt default.
func displayOffset(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return timecode.Format(float64(seconds))
}

func init() {
	prefsCmd.AddCommand(prefsClearCmd)
}

// prefsClearCmd resets the skip configuration of a series to its zero state.
var prefsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the skip configuration of a series",
	Run: func(cmd *cobra.Command, args []string) {
		series := prefsSeries(cmd)
		handleErr(prefs.NewStore().Save(prefs.Defaults(series)))
		fmt.Printf(
			"%s cleared skip preferences for %s\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			style.Fg(color.Purple)(series),
		)
	},
}
