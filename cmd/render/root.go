package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bobarin/shortreel/internal/app"
	"github.com/bobarin/shortreel/internal/config"
	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/bobarin/shortreel/internal/worker"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	method    string
	voice     string
	style     string
	width     int
	height    int
	fps       int
	music     bool
	volume    float64
	outputDir string
	timeout   time.Duration
}

// settings turns flags into render settings. Unset flags stay zero and are
// filled with server defaults on submit.
func (o *renderOptions) settings() (models.RenderSettings, error) {
	s := models.RenderSettings{
		Width:           o.width,
		Height:          o.height,
		FPS:             o.fps,
		Voice:           o.voice,
		ImageStyle:      o.style,
		BackgroundMusic: o.music,
		MusicVolume:     o.volume,
	}
	if o.method != "" {
		m := models.ImageGenerationMethod(o.method)
		if !m.Valid() {
			return s, fmt.Errorf("unknown --method %q (want placeholder, stockPhoto or aiGenerated)", o.method)
		}
		s.ImageGenerationMethod = m
	}
	return s, nil
}

func newRootCommand() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:           "render <script.yaml|script.json>",
		Short:         "Render a narrated short video from a script file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRender(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.method, "method", "", "Image strategy: placeholder, stockPhoto or aiGenerated")
	flags.StringVar(&opts.voice, "voice", "", "Narration voice, e.g. es-ES")
	flags.StringVar(&opts.style, "style", "", "Style hint for generated images")
	flags.IntVar(&opts.width, "width", 0, "Frame width (default 1080)")
	flags.IntVar(&opts.height, "height", 0, "Frame height (default 1920)")
	flags.IntVar(&opts.fps, "fps", 0, "Frame rate (default 30)")
	flags.BoolVar(&opts.music, "music", false, "Mix the configured background track under the narration")
	flags.Float64Var(&opts.volume, "music-volume", 0, "Background track gain (default 0.3)")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Directory for the finished video (overrides OUTPUT_DIR)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Give up after this long")

	return cmd
}

func runRender(ctx context.Context, out io.Writer, path string, opts *renderOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	script, err := models.ParseScriptFile(path, data)
	if err != nil {
		return err
	}
	settings, err := opts.settings()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	publisher, local, err := app.NewPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	w, err := app.NewWorker(cfg, store.NewMemory(), publisher)
	if err != nil {
		return err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	runner := worker.NewInProcessRunner(ctx, w.Run)
	w.SetRunner(runner)

	id, err := w.Submit(ctx, script.Scenes, settings)
	if err != nil {
		return err
	}
	job, err := w.Await(ctx, id)
	runner.Wait()
	if err != nil {
		// The runner recorded the cancellation; show what was stored.
		if stored, getErr := w.Get(context.Background(), id); getErr == nil {
			job = stored
		}
	}
	if job == nil {
		return err
	}

	rows := summaryRows(job)
	if local != nil && job.OutputName != nil {
		rows = append(rows, [2]string{"File", filepath.Join(local.Dir(), *job.OutputName)})
	}
	fmt.Fprintln(out, renderKeyValueTable(script.Title, rows))

	if job.State == models.JobStateFailed {
		return fmt.Errorf("render failed")
	}
	return err
}

func summaryRows(job *models.Job) [][2]string {
	rows := [][2]string{
		{"Job", job.ID.String()},
		{"Status", string(job.State)},
		{"Progress", strconv.Itoa(job.Progress) + "%"},
		{"Scenes", strconv.Itoa(len(job.Scenes))},
		{"Images", string(job.Settings.ImageGenerationMethod)},
		{"Size", fmt.Sprintf("%dx%d @ %d fps", job.Settings.Width, job.Settings.Height, job.Settings.FPS)},
	}
	if len(job.DegradedScenes) > 0 {
		nums := make([]string, len(job.DegradedScenes))
		for i, idx := range job.DegradedScenes {
			nums[i] = strconv.Itoa(idx + 1)
		}
		rows = append(rows, [2]string{"Placeholders", strings.Join(nums, ", ")})
	}
	for _, warning := range job.Warnings {
		rows = append(rows, [2]string{"Warning", warning})
	}
	if job.OutputLocation != nil {
		rows = append(rows, [2]string{"Output", *job.OutputLocation})
	}
	if job.Error != nil {
		rows = append(rows, [2]string{"Error", *job.Error})
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		rows = append(rows, [2]string{"Took", job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()})
	}
	return rows
}
