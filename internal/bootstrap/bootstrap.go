package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	boothinadapter "pixelbooth/internal/modules/booth/adapter/in"
	boothoutadapter "pixelbooth/internal/modules/booth/adapter/out"
	boothout "pixelbooth/internal/modules/booth/port/out"
	boothservice "pixelbooth/internal/modules/booth/service"
	boothusecase "pixelbooth/internal/modules/booth/usecase"
	deviceinadapter "pixelbooth/internal/modules/device/adapter/in"
	deviceoutadapter "pixelbooth/internal/modules/device/adapter/out"
	devicedomain "pixelbooth/internal/modules/device/domain"
	devicein "pixelbooth/internal/modules/device/port/in"
	deviceout "pixelbooth/internal/modules/device/port/out"
	deviceservice "pixelbooth/internal/modules/device/service"
	deviceusecase "pixelbooth/internal/modules/device/usecase"
	generationinadapter "pixelbooth/internal/modules/generation/adapter/in"
	generationoutadapter "pixelbooth/internal/modules/generation/adapter/out"
	generationin "pixelbooth/internal/modules/generation/port/in"
	generationout "pixelbooth/internal/modules/generation/port/out"
	generationservice "pixelbooth/internal/modules/generation/service"
	generationusecase "pixelbooth/internal/modules/generation/usecase"
	printinginadapter "pixelbooth/internal/modules/printing/adapter/in"
	printingoutadapter "pixelbooth/internal/modules/printing/adapter/out"
	printingout "pixelbooth/internal/modules/printing/port/out"
	printingservice "pixelbooth/internal/modules/printing/service"
	printingusecase "pixelbooth/internal/modules/printing/usecase"
	"pixelbooth/internal/platform/clock"
	"pixelbooth/internal/platform/config"
	"pixelbooth/internal/platform/id"
	"pixelbooth/internal/platform/sqlitedb"
	"pixelbooth/internal/platform/telemetry"
	uiapp "pixelbooth/internal/ui/app"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config config.Config
	Logger *slog.Logger

	BoothCLI      boothinadapter.CLIHandler
	BoothTUI      boothinadapter.TUIHandler
	BoothHTTP     *boothinadapter.HTTPHandler
	GenerationCLI generationinadapter.CLIHandler
	PrintingCLI   printinginadapter.CLIHandler
	// DeviceCLI is only usable when HasDevice is true.
	DeviceCLI deviceinadapter.CLIHandler
	HasDevice bool

	kiosk      *boothservice.Kiosk
	db         *sql.DB
	metrics    telemetry.Recorder
	deviceHost deviceout.Host
}

// New wires every module from cfg. Callers must Close the returned App.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, logOutput io.Writer) (*App, error) {
	clk := clock.SystemClock{}
	ids := id.UUID{}

	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, db: db}

	metrics, err := telemetry.New(ctx, cfg.OTel)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	app.metrics = metrics

	var device devicein.Usecase
	if cfg.Plugin.Binary != "" {
		host := deviceoutadapter.NewGRPCHost(cfg.Plugin.StartTimeout, cfg.Plugin.CallTimeout, hclog.New(&hclog.LoggerOptions{
			Name:   "device",
			Level:  hclog.LevelFromString(cfg.Log.Level),
			Output: logOutput,
		}))
		app.deviceHost = host
		device = deviceusecase.NewInteractor(deviceservice.NewDeviceService(devicedomain.Manifest{
			Name:   cfg.Plugin.Name,
			Binary: cfg.Plugin.Binary,
			SHA256: cfg.Plugin.SHA256,
		}, host))
		app.DeviceCLI = deviceinadapter.NewCLIHandler(device)
		app.HasDevice = true
	}

	generationUC, err := newGeneration(ctx, cfg, clk, ids, db, metrics, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.GenerationCLI = generationinadapter.NewCLIHandler(generationUC)

	spooler, err := newSpooler(cfg, clk, device)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	printStore, err := printingoutadapter.NewSQLiteJobStore(ctx, db)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("new print job store: %w", err)
	}
	printingUC := printingusecase.NewInteractor(printingservice.NewPrintService(clk, ids, spooler, printStore, logger.With("module", "printing")))
	app.PrintingCLI = printinginadapter.NewCLIHandler(printingUC)

	archive, err := boothoutadapter.NewArchiveStore(ctx, cfg.ArchiveDir, db)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("new session archive: %w", err)
	}

	var capture boothout.CaptureDevice
	switch cfg.Capture.Backend {
	case "plugin":
		if device == nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("capture backend plugin needs plugin.binary")
		}
		capture = boothoutadapter.NewDeviceCapture(device)
	default:
		capture = boothoutadapter.NewFileCapture(cfg.Capture.Dir, clk)
	}

	app.kiosk = boothservice.NewKiosk(kioskOptions(cfg.Kiosk), boothservice.Deps{
		Clock:     clk,
		Tickers:   clk,
		IDs:       ids,
		Capture:   capture,
		Generator: boothoutadapter.NewGenerationAdapter(generationUC),
		Printer:   boothoutadapter.NewPrintingAdapter(printingUC),
		Archive:   archive,
		Metrics:   metrics,
		Logger:    logger.With("module", "booth"),
	})
	boothUC := boothusecase.NewInteractor(app.kiosk, archive)
	app.BoothCLI = boothinadapter.NewCLIHandler(boothUC)
	app.BoothTUI = boothinadapter.NewTUIHandler(boothUC)
	app.BoothHTTP = boothinadapter.NewHTTPHandler(boothUC, logger.With("module", "http"))
	return app, nil
}

func newGeneration(ctx context.Context, cfg config.Config, clk clock.Clock, ids id.Generator, db *sql.DB, metrics telemetry.Recorder, logger *slog.Logger) (generationin.Usecase, error) {
	var images generationout.ImageService
	switch cfg.Generation.Backend {
	case "rest":
		images = generationoutadapter.NewRESTImageService(cfg.Generation.Endpoint, cfg.Generation.APIKey, cfg.Generation.Timeout)
	default:
		images = generationoutadapter.NewSimImageService(ids, cfg.Generation.SimCompleteAfter)
	}

	var translator generationout.Translator
	if cfg.Translation.Enabled {
		translator = generationoutadapter.NewChatTranslator(
			cfg.Translation.Endpoint,
			cfg.Translation.APIKey,
			cfg.Translation.Model,
			cfg.Translation.TargetLanguage,
			cfg.Generation.Timeout,
		)
	}

	store, err := generationoutadapter.NewSQLiteJobStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("new generation job store: %w", err)
	}
	moduleLogger := logger.With("module", "generation")
	svc := generationservice.NewGenerationService(generationservice.Options{
		ImageCount:       cfg.Generation.ImageCount,
		Width:            cfg.Generation.Width,
		Height:           cfg.Generation.Height,
		ModelID:          cfg.Generation.ModelID,
		StyleModelID:     cfg.Generation.StyleModelID,
		StylePoll:        cfg.Generation.StylePoll,
		StyleMaxAttempts: cfg.Generation.StyleMaxAttempts,
		CallTimeout:      cfg.Generation.Timeout,
		FallbackEnabled:  cfg.Generation.FallbackEnabled,
		FallbackDelay:    cfg.Generation.FallbackDelay,
	}, clk, ids, translator, images, store, metrics, moduleLogger)
	return generationusecase.NewInteractor(svc, moduleLogger), nil
}

func newSpooler(cfg config.Config, clk clock.Clock, device devicein.Usecase) (printingout.Spooler, error) {
	switch cfg.Print.Backend {
	case "http":
		return printingoutadapter.NewHTTPSpooler(cfg.Print.Endpoint, cfg.Kiosk.CallTimeout), nil
	case "plugin":
		if device == nil {
			return nil, fmt.Errorf("print backend plugin needs plugin.binary")
		}
		return printingoutadapter.NewDeviceSpooler(device), nil
	default:
		return printingoutadapter.NewSimSpooler(cfg.Print.SpoolDir, clk, cfg.Print.QueueDelay, cfg.Print.ProcessDelay), nil
	}
}

func kioskOptions(k config.KioskConfig) boothservice.Options {
	opts := boothservice.DefaultOptions()
	opts.IdleThreshold = k.IdleTimeoutSeconds
	opts.IdleTick = k.IdleTick
	opts.GenerationPoll = k.GenerationPoll
	opts.ProgressInterval = k.ProgressInterval
	opts.PrintPoll = k.PrintPoll
	opts.PrintGrace = k.PrintGrace
	opts.MaxPollAttempts = k.MaxPollAttempts
	opts.CallTimeout = k.CallTimeout
	return opts
}

// RunTUI drives the kiosk with the terminal UI until the operator quits. The
// admin API is served alongside when an address is configured.
func RunTUI(ctx context.Context, app *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.kiosk.Run(gctx) })
	if app.Config.HTTP.Addr != "" {
		g.Go(func() error { return serveHTTP(gctx, app) })
	}
	g.Go(func() error {
		defer cancel()
		model := uiapp.NewModel(gctx, app.BoothTUI, app.BoothCLI)
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

// Serve runs the kiosk headless with only the admin API, until ctx ends.
func Serve(ctx context.Context, app *App) error {
	if app.Config.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required to serve")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.kiosk.Run(gctx) })
	g.Go(func() error { return serveHTTP(gctx, app) })
	return g.Wait()
}

func serveHTTP(ctx context.Context, app *App) error {
	srv := &http.Server{
		Addr:              app.Config.HTTP.Addr,
		Handler:           app.BoothHTTP.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("admin api listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close releases the database, metrics exporter and device drivers.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.deviceHost != nil {
		if err := a.deviceHost.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device host: %w", err))
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close telemetry: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
