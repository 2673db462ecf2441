package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pixelbooth/internal/bootstrap"
	generationdto "pixelbooth/internal/modules/generation/dto"
	printingdto "pixelbooth/internal/modules/printing/dto"
	"pixelbooth/internal/platform/config"
	"pixelbooth/internal/platform/id"
	"pixelbooth/internal/platform/logging"
)

const logFileName = "pixelbooth.log"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir    string
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pixelbooth",
		Short:         "AI photo booth kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", ".pixelbooth", "data directory (database, archive, spool)")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default <data>/pixelbooth.yaml)")

	root.AddCommand(newKioskCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newGenerateCmd(flags))
	root.AddCommand(newPrintCmd(flags))
	root.AddCommand(newSessionsCmd(flags))
	root.AddCommand(newDeviceCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	return config.Load(flags.dataDir, flags.configFile)
}

// loadApp wires the application. Logs go to logOutput, or to a file in the
// data directory when logOutput is nil so the terminal UI stays clean.
func loadApp(ctx context.Context, flags *globalFlags, logOutput io.Writer) (*bootstrap.App, func(), error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	closeLog := func() {}
	if logOutput == nil {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(cfg.DataDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logOutput = f
		closeLog = func() { _ = f.Close() }
	}
	logger, err := logging.New(logOutput, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	app, err := bootstrap.New(ctx, cfg, logger, logOutput)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
		closeLog()
	}
	return app, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newKioskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kiosk",
		Short: "Run the booth with the terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			app, cleanup, err := loadApp(ctx, flags, nil)
			if err != nil {
				return err
			}
			defer cleanup()
			return bootstrap.RunTUI(ctx, app)
		},
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the booth headless with the admin API",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			app, cleanup, err := loadApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			if addr != "" {
				app.Config.HTTP.Addr = addr
			}
			return bootstrap.Serve(ctx, app)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func newGenerateCmd(flags *globalFlags) *cobra.Command {
	var imagePath, prompt, stylePrompt string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "generate --image <path> --prompt <text>",
		Short: "Run one generation outside of a kiosk session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(imagePath) == "" {
				return fmt.Errorf("--image is required")
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("--prompt is required")
			}
			image, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			ctx, stop := signalContext()
			defer stop()
			app, cleanup, err := loadApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()

			sessionID := id.UUID{}.New()
			out, err := app.GenerationCLI.Submit(ctx, sessionID, image, contentTypeFor(imagePath), prompt, stylePrompt)
			if err != nil {
				return err
			}
			defer app.GenerationCLI.Cleanup(context.Background(), sessionID)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session=%s generation=%s degraded=%t\n", out.SessionID, out.GenerationID, out.Degraded)

			status, err := waitForGeneration(ctx, app, sessionID, app.Config.Kiosk.GenerationPoll, wait)
			if err != nil {
				return err
			}
			if status.State == generationdto.StateFailed {
				return fmt.Errorf("generation failed: %s", status.Reason)
			}
			for i, a := range status.Artifacts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%dx%d\n", i+1, a.URL, a.Width, a.Height)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "photo to transform")
	cmd.Flags().StringVar(&prompt, "prompt", "", "transformation prompt")
	cmd.Flags().StringVar(&stylePrompt, "style", "", "style prompt (defaults to the prompt)")
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Minute, "how long to wait for the images")
	return cmd
}

func waitForGeneration(ctx context.Context, app *bootstrap.App, sessionID string, every, limit time.Duration) (generationdto.StatusOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		status, err := app.GenerationCLI.Status(ctx, sessionID)
		if err != nil {
			return generationdto.StatusOutput{}, err
		}
		if status.State != generationdto.StatePending {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return generationdto.StatusOutput{}, fmt.Errorf("wait for generation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func newPrintCmd(flags *globalFlags) *cobra.Command {
	var imageURL, sessionID string
	var copies int
	printCmd := &cobra.Command{
		Use:   "print --url <image-url>",
		Short: "Send an image to the printer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(imageURL) == "" {
				return fmt.Errorf("--url is required")
			}
			ctx, stop := signalContext()
			defer stop()
			app, cleanup, err := loadApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			if sessionID == "" {
				sessionID = "cli-" + id.UUID{}.New()
			}
			out, err := app.PrintingCLI.Print(ctx, sessionID, imageURL, copies)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "job=%s state=%s copies=%d\n", out.JobID, out.State, out.Copies)
			return nil
		},
	}
	printCmd.Flags().StringVar(&imageURL, "url", "", "image URL")
	printCmd.Flags().StringVar(&sessionID, "session-id", "", "session to attribute the print to")
	printCmd.Flags().IntVar(&copies, "copies", 1, "number of copies")

	var follow bool
	status := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show print job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			app, cleanup, err := loadApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			for {
				st, err := app.PrintingCLI.Status(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "job=%s state=%s outcome=%s", st.JobID, st.State, st.Outcome)
				if st.Reason != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), " reason=%q", st.Reason)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
				if !follow || st.Outcome != printingdto.OutcomePending {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(app.Config.Kiosk.PrintPoll):
				}
			}
		},
	}
	status.Flags().BoolVar(&follow, "follow", false, "poll until the job finishes")
	show := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the stored print job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			job, err := app.PrintingCLI.Job(context.Background(), args[0])
			if err != nil {
				return err
			}
			writeJob(cmd.OutOrStdout(), job)
			return nil
		},
	}

	printCmd.AddCommand(status, show)
	return printCmd
}

func writeJob(w io.Writer, job printingdto.JobOutput) {
	_, _ = fmt.Fprintf(w, "job: %s\nsession: %s\nimage: %d %s\ncopies: %d\nstate: %s\ncreated: %s\n",
		job.JobID, job.SessionID, job.ArtifactIndex+1, job.ArtifactURL, job.Copies, job.State, job.CreatedAt)
	if job.Reason != "" {
		_, _ = fmt.Fprintf(w, "reason: %s\n", job.Reason)
	}
}

func newSessionsCmd(flags *globalFlags) *cobra.Command {
	sessions := &cobra.Command{Use: "sessions", Short: "Archived kiosk sessions"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			items, err := app.BoothCLI.ListSessions(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, s := range items {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d images\t%s\n",
					s.SessionID, s.EndedAt.Local().Format(time.DateTime), s.FinalPhase, s.ImageCount, s.VisitorName)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show (0 for all)")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one archived session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			s, err := app.BoothCLI.ShowSession(context.Background(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session: %s\nvisitor: %s <%s>\nended: %s\nphase: %s\nprompt: %s\nstyle: %s\ngeneration: %s\ndegraded: %t\nprint job: %s\nnote: %s\n",
				s.SessionID, s.VisitorName, s.VisitorEmail, s.EndedAt.Format(time.RFC3339), s.FinalPhase,
				s.Prompt, s.StylePrompt, s.GenerationID, s.Degraded, s.PrintJobID, s.NotePath)
			for i, a := range s.Artifacts {
				marker := ""
				if i == s.Selected {
					marker = " *"
				}
				_, _ = fmt.Fprintf(out, "  %d. %s%s\n", i+1, a.URL, marker)
			}
			return nil
		},
	}

	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the session index from the archive notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			n, err := app.BoothCLI.Reindex(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d sessions\n", n)
			return nil
		},
	}

	sessions.AddCommand(list, show, reindex)
	return sessions
}

func newDeviceCmd(flags *globalFlags) *cobra.Command {
	device := &cobra.Command{Use: "device", Short: "Capture and print driver plugin"}

	device.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured driver starts and answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			if !app.HasDevice {
				return fmt.Errorf("no device plugin configured (plugin.binary)")
			}
			res, err := app.DeviceCLI.Doctor(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "name=%s binary=%s\n", res.Name, res.Binary)
			_, _ = fmt.Fprintf(out, "reachable=%t checksum=%t lifecycle=%t\n", res.BinaryReachable, res.ChecksumValid, res.LifecycleOK)
			if len(res.Capabilities) > 0 {
				_, _ = fmt.Fprintf(out, "capabilities=%s\n", strings.Join(res.Capabilities, ","))
			}
			if res.Error != "" {
				return fmt.Errorf("doctor: %s", res.Error)
			}
			return nil
		},
	})

	var outPath string
	capture := &cobra.Command{
		Use:   "capture --out <path>",
		Short: "Take a photo with the driver and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(outPath) == "" {
				return fmt.Errorf("--out is required")
			}
			app, cleanup, err := loadApp(context.Background(), flags, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()
			if !app.HasDevice {
				return fmt.Errorf("no device plugin configured (plugin.binary)")
			}
			photo, err := app.DeviceCLI.Capture(context.Background())
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, photo.Data, 0o644); err != nil {
				return fmt.Errorf("write photo: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s, %d bytes)\n", outPath, photo.ContentType, len(photo.Data))
			return nil
		},
	}
	capture.Flags().StringVar(&outPath, "out", "", "output file")
	device.AddCommand(capture)
	return device
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			cfg.Generation.APIKey = mask(cfg.Generation.APIKey)
			cfg.Translation.APIKey = mask(cfg.Translation.APIKey)
			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# data dir: %s\n%s", cfg.DataDir, raw)
			return nil
		},
	})
	return cfgCmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
