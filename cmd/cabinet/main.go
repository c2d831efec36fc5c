package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filecabinet/pkg/common"
	"filecabinet/pkg/config"
	"filecabinet/pkg/core"
	"filecabinet/pkg/core/disk"
	"filecabinet/pkg/core/memory"
	"filecabinet/pkg/validation"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
)

const Prompt = "cabinet> "

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cabinet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (default: configs/cabinet.yaml or cabinet.yaml)")
	mode := flag.String("storage", "", "storage mode: memory or file")
	path := flag.String("path", "", "slot file used in file mode")
	profile := flag.String("profile", "", "validation profile")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	if *verbose {
		ll.Set(slog.LevelDebug)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Storage.Mode = strings.ToLower(*mode)
	}
	if *path != "" {
		cfg.Storage.Path = *path
	}
	if *profile != "" {
		cfg.Validation.Profile = *profile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pipeline, err := validation.ForConfig(cfg, "")
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	st, err := openStore(cfg, pipeline, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("close store", "err", err)
		}
	}()
	logger.Debug("store ready", "mode", cfg.Storage.Mode, "profile", pipeline.Name())

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	sh := &shell{
		store:    st,
		registry: reg,
		archive:  cfg.Storage.Archive,
		out:      os.Stdout,
		logger:   logger,
	}
	if interactive {
		fmt.Printf("File cabinet (%s storage, %s profile). Type 'help' for commands.\n", cfg.Storage.Mode, pipeline.Name())
	}
	return repl(sh, os.Stdin, interactive)
}

func openStore(cfg *config.Config, pipeline *validation.Pipeline, logger *slog.Logger, reg prometheus.Registerer) (core.Store, error) {
	opts := []core.Option{
		core.WithCache(cfg.CacheEnabled()),
		core.WithLogger(logger),
		core.WithRegisterer(reg),
	}
	if cfg.Storage.IndexDegree > 0 {
		opts = append(opts, core.WithIndexDegree(cfg.Storage.IndexDegree))
	}
	switch cfg.Storage.Mode {
	case config.ModeFile:
		return disk.Open(cfg.Storage.Path, pipeline, opts...)
	default:
		return memory.NewStore(pipeline, opts...), nil
	}
}

func repl(sh *shell, in io.Reader, interactive bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(sh.out, Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		err := sh.exec(scanner.Text())
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			if errors.Is(err, common.ErrCorruptStorage) {
				return err
			}
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
}
