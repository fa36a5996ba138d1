package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/varun-un/AetherConnect/internal/config"
	"github.com/varun-un/AetherConnect/internal/lesson"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print the lesson schedule after config overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewLoader(configPath).Load()
		if err != nil {
			return err
		}
		lc := cfg.Session.Lesson

		type row struct {
			at   float64
			line string
		}
		var rows []row
		for _, id := range lesson.AnnotationIDs {
			for _, w := range lc.Windows[id] {
				rows = append(rows, row{w.Start, fmt.Sprintf("%s\t%s\t%s\t", clockLabel(w.Start), clockLabel(w.End), id)})
			}
		}
		rows = append(rows,
			row{lc.EccentricityControlAt, fmt.Sprintf("%s\t\t%s\tslider [%g, %g]", clockLabel(lc.EccentricityControlAt), lesson.EccentricityControl, lc.SliderMin, lc.SliderMax)},
			row{float64(lc.ConvergeAtSecond), fmt.Sprintf("%s\t\t%s\tto %g in %d steps", clockLabel(float64(lc.ConvergeAtSecond)), lesson.EccentricityConverge, lc.ConvergeTarget, lc.ConvergeSteps)},
			row{lc.DeferredBodiesAt, fmt.Sprintf("%s\t\t%s\t", clockLabel(lc.DeferredBodiesAt), lesson.DeferredBodies)},
		)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].at < rows[j].at })

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tUNTIL\tID\tNOTE")
		for _, r := range rows {
			fmt.Fprintln(tw, r.line)
		}
		return tw.Flush()
	},
}

// clockLabel renders narration seconds as m:ss.
func clockLabel(t float64) string {
	s := int(t)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
