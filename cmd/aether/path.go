package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/varun-un/AetherConnect/internal/orbit"
)

var pathFlags struct {
	eccentricity float64
	periodDays   float64
	semiMajor    float64
	width        int
	height       int
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Plot the Sun distance over one orbit",
	Long: `Sample an orbit the way sessions do (240 samples per simulated day) and
plot its focal distance from perihelion round to perihelion.

Examples:
  # Earth as first shown in the lesson
  aether path -e 0.41671

  # Mercury
  aether path -e 0.2056 --period 87.97 -a 3.9`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		el := orbit.Elements{
			Eccentricity:  pathFlags.eccentricity,
			PeriodDays:    pathFlags.periodDays,
			SemiMajorAxis: pathFlags.semiMajor,
		}
		path, stats, err := orbit.ComputePath(cmd.Context(), el)
		if err != nil {
			return err
		}

		stride := max(len(path)/max(pathFlags.width, 1), 1)
		plot := asciigraph.Plot(path.Radii(stride),
			asciigraph.Height(pathFlags.height),
			asciigraph.Width(pathFlags.width),
			asciigraph.Caption(fmt.Sprintf("distance from the Sun over %g days (scene units)", el.PeriodDays)),
		)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, plot)
		fmt.Fprintln(out)

		aKm := el.SemiMajorAxis * orbit.KmPerSceneUnit
		fmt.Fprintf(out, "samples        %d (max %d Kepler iterations, %v)\n", stats.Samples, stats.MaxIterations, stats.Duration)
		fmt.Fprintf(out, "perihelion     %.4f  %.2f km/s\n", el.Periapsis(), orbit.VisViva(aKm, el.Periapsis()*orbit.KmPerSceneUnit))
		fmt.Fprintf(out, "aphelion       %.4f  %.2f km/s\n", el.Apoapsis(), orbit.VisViva(aKm, el.Apoapsis()*orbit.KmPerSceneUnit))
		fmt.Fprintf(out, "circular speed %.2f km/s at a\n", orbit.CircularVelocity(aKm))
		return nil
	},
}

func init() {
	f := pathCmd.Flags()
	f.Float64VarP(&pathFlags.eccentricity, "eccentricity", "e", 0.0167, "orbital eccentricity in [0, 1)")
	f.Float64Var(&pathFlags.periodDays, "period", 365.25, "orbital period in days")
	f.Float64VarP(&pathFlags.semiMajor, "semi-major", "a", 10, "semi-major axis in scene units")
	f.IntVar(&pathFlags.width, "width", 72, "plot width in columns")
	f.IntVar(&pathFlags.height, "height", 16, "plot height in rows")
}
