package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/app"
	"github.com/ayusman/shadowdepth/internal/capture"
)

type analyzeOptions struct {
	image  string
	video  string
	output string
	fps    float64
	json   bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Estimate hand-to-face depth in an image or a video file",
	Long: "Runs a still image or every frame of a video through a fresh session. " +
		"Video sessions and their touch events are saved like live ones.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := analyzeOpts
		switch {
		case opts.image != "" && opts.video != "":
			return errors.New("use either --image or --video")
		case opts.image != "":
			return analyzeImage(cmd.OutOrStdout(), opts)
		case opts.video != "":
			return analyzeVideo(cmd, opts)
		default:
			return errors.New("one of --image or --video is required")
		}
	},
}

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVarP(&analyzeOpts.image, "image", "i", "", "Image file to analyze")
	flags.StringVarP(&analyzeOpts.video, "video", "v", "", "Video file to analyze")
	flags.StringVarP(&analyzeOpts.output, "output", "o", "", "Write the annotated image or video here")
	flags.Float64Var(&analyzeOpts.fps, "fps", 0, "Frame rate for event timestamps (default: the video's own)")
	flags.BoolVar(&analyzeOpts.json, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

func analyzeImage(w io.Writer, opts analyzeOptions) error {
	img := gocv.IMRead(opts.image, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("cannot read image %s", opts.image)
	}
	defer img.Close()

	det := app.SelectDetector(cfg.CascadePath)
	defer det.Close()

	report, annotated, err := app.AnalyzeImage(img, det, cfg.Depth)
	if err != nil {
		return err
	}
	defer annotated.Close()

	if opts.output != "" && !gocv.IMWrite(opts.output, annotated) {
		return fmt.Errorf("cannot write %s", opts.output)
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Action:\t%s\n", report.Estimate.Action.Label())
	fmt.Fprintf(tw, "Depth:\t%.2f cm\n", report.Estimate.DepthCM)
	if m := report.Metrics; m != nil {
		fmt.Fprintf(tw, "Shadow area:\t%d px\n", m.Area)
		fmt.Fprintf(tw, "Shadow mean:\t%.1f\n", m.MeanShadow)
		fmt.Fprintf(tw, "Background mean:\t%.1f\n", m.MeanBackground)
		fmt.Fprintf(tw, "Intensity drop:\t%.3f\n", m.IntensityDrop)
	}
	fmt.Fprintf(tw, "Hands:\t%d\n", len(report.Perception.Hands))
	return tw.Flush()
}

func analyzeVideo(cmd *cobra.Command, opts analyzeOptions) error {
	cam := capture.NewFileCamera(opts.video, false)
	if err := cam.Open(); err != nil {
		return err
	}
	defer cam.Close()

	det := app.SelectDetector(cfg.CascadePath)
	defer det.Close()

	total := cam.FrameCount()
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	summary, err := app.Analyze(cmd.Context(), cam, det, app.AnalyzeOptions{
		Source: "file:" + opts.video,
		Depth:  cfg.Depth,
		FPS:    opts.fps,
		Store:  st,
		Output: opts.output,
		Progress: func(int) {
			bar.Add(1)
		},
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return printSummary(w, summary)
}

func printSummary(w io.Writer, s *app.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Session:\t%s\n", s.SessionID)
	fmt.Fprintf(tw, "Frames:\t%d (%d with a face)\n", s.Frames, s.FaceFrames)
	fmt.Fprintf(tw, "Touching frames:\t%d\n", s.TouchingFrames)
	if s.FaceFrames > 0 {
		fmt.Fprintf(tw, "Depth:\tmean %.2f cm, sd %.2f, min %.2f\n", s.MeanDepthCM, s.StdDepthCM, s.MinDepthCM)
		fmt.Fprintf(tw, "Mean intensity drop:\t%.3f\n", s.MeanDrop)
	}
	fmt.Fprintf(tw, "Touches:\t%d\n", len(s.Touches))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Touches) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "#\tAT\tDURATION\tFRAMES\tMIN DEPTH")
	for i, t := range s.Touches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f cm\n", i+1,
			t.StartedAt.Sub(s.StartedAt), t.Duration(), t.Frames, t.MinDepthCM)
	}
	return tw.Flush()
}
