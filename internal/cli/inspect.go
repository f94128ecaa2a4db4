package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/director"
)

type trackSample struct {
	Phase    string    `json:"phase"`
	Object   string    `json:"object"`
	Property string    `json:"property"`
	Value    []float64 `json:"value"`
}

func newInspectCmd(app *App) *cobra.Command {
	var dir string
	var frame float64

	cmd := &cobra.Command{
		Use:   "inspect [TIMELINE]",
		Short: "Summarize a timeline, or sample its tracks at one frame",
		Long:  "Summarize a timeline. Without TIMELINE the newest timeline in --dir is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output()

			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				latest, err := director.FindLatestTimeline(dir)
				if err != nil {
					return err
				}
				path = latest
				out.Success("Selected " + path)
			}

			tl, err := director.ReadTimeline(path)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("frame") {
				printPhases(out, tl)
				return nil
			}
			if frame < 1 || frame > float64(tl.TotalFrames) {
				return fmt.Errorf("frame %g outside 1..%d", frame, tl.TotalFrames)
			}
			printSamples(out, tl, frame)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", defaultTimelineDir, "Directory searched for the newest timeline")
	cmd.Flags().Float64Var(&frame, "frame", 0, "Sample every track at this frame")
	return cmd
}

func printPhases(out *Output, tl *director.Timeline) {
	rows := make([][]string, 0, len(tl.Phases))
	for _, p := range tl.Phases {
		keys := 0
		for _, tr := range p.Tracks {
			keys += len(tr.Keyframes)
		}
		rows = append(rows, []string{
			p.Name,
			strconv.FormatFloat(p.StartFrame, 'f', -1, 64),
			strconv.FormatFloat(p.EndFrame, 'f', -1, 64),
			strconv.Itoa(len(p.Tracks)),
			strconv.Itoa(keys),
		})
	}
	out.Print([]string{"PHASE", "START", "END", "TRACKS", "KEYFRAMES"}, rows, tl)
}

func printSamples(out *Output, tl *director.Timeline, frame float64) {
	var samples []trackSample
	var rows [][]string
	for _, p := range tl.Phases {
		for _, tr := range p.Tracks {
			v := tr.Sample(frame)
			samples = append(samples, trackSample{Phase: p.Name, Object: tr.ObjectRef, Property: tr.Property, Value: v})
			rows = append(rows, []string{p.Name, tr.ObjectRef, tr.Property, formatValue(v)})
		}
	}
	out.Print([]string{"PHASE", "OBJECT", "PROPERTY", "VALUE"}, rows, samples)
}

func formatValue(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 3, 64)
	}
	return strings.Join(parts, " ")
}
