package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/medscan-api/internal/config"
	"github.com/Brownie44l1/medscan-api/internal/handlers"
	"github.com/Brownie44l1/medscan-api/internal/metrics"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/predictor"
	"github.com/Brownie44l1/medscan-api/internal/taxonomy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "medscan-server"
	app.Usage = "Classify uploaded medical images over HTTP"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config,c", Usage: "Path to a YAML config file", EnvVar: "CONFIG_FILE"},
	}
	app.Action = func(c *cli.Context) error {
		return serve(c.String("config"))
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
}

func serve(configPath string) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	tax := taxonomy.Default()
	m := metrics.New()
	modelHandle := model.NewHandle(cfg.ModelPath, model.ONNXLoader(model.ONNXOptions{
		LibraryPath: cfg.OrtLibPath,
		InputName:   cfg.InputName,
		OutputName:  cfg.OutputName,
		NumClasses:  tax.Len(),
	}))
	modelHandle.Observe(m.ObserveModelLoad)
	defer func() {
		if err := modelHandle.Close(); err != nil {
			logrus.WithError(err).Warn("Closing model failed")
		}
		if err := model.DestroyEnvironment(); err != nil {
			logrus.WithError(err).Warn("Destroying ONNX environment failed")
		}
	}()

	logrus.Infof("Loading model from: %s", modelHandle.Path())
	if cfg.ShouldEagerLoad() {
		if err := modelHandle.Load(); err != nil {
			logrus.Warn("Model not loaded at startup, retrying on first request")
		}
	}

	handler := handlers.NewHandler(modelHandle, predictor.New(tax), m, cfg.MaxUploadBytes)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Infof("Server starting on %s", srv.Addr)
		logrus.Info("Endpoints:")
		logrus.Info("  GET  /health  - Health check")
		logrus.Info("  GET  /metrics - Prometheus metrics")
		logrus.Info("  POST /analyze - Classify an uploaded image (field 'image')")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
