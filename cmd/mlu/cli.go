package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/mlu/chain"
	"github.com/YuminosukeSato/mlu/pipeline"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/server"
)

var version = "0.1.0-dev"

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitStepFailure = 3
)

const usage = `usage: mlu <command> [flags]

commands:
  run      run a pipeline file (YAML, TOML or JSON)
  serve    serve a saved model over HTTP
  version  print the version
`

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(stderr, "mlu: .env:", err)
		return exitError
	}
	level := strings.ToLower(os.Getenv("MLU_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	if _, ok := log.ParseLevel(level); !ok {
		fmt.Fprintf(stderr, "mlu: invalid MLU_LOG_LEVEL %q\n", level)
		return exitUsage
	}
	log.SetupLoggerTo(stderr, level)

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "run":
		return runPipeline(args[1:], stdout, stderr)
	case "serve":
		return serve(args[1:], stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, "mlu", version)
		return exitOK
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "mlu: unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

func runPipeline(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "pipeline file (.yaml, .yml, .toml or .json)")
	outPath := fs.String("out", "", "write the result JSON here instead of stdout")
	strict := fs.Bool("strict", false, "stop at the first failing step and exit non-zero")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *configPath == "" {
		fmt.Fprintln(stderr, "mlu run: -config is required")
		return exitUsage
	}

	cfg, err := pipeline.Load(*configPath)
	if err != nil {
		slog.Error("cannot load pipeline", log.ErrAttr(err), "path", *configPath)
		return exitError
	}
	var opts []chain.Option
	if *strict {
		opts = append(opts, chain.WithErrorPolicy(chain.FailFast))
	}
	res, err := pipeline.Run(cfg, opts...)
	if err != nil {
		slog.Error("pipeline failed", log.ErrAttr(err), "path", *configPath)
		return exitError
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("cannot create output", log.ErrAttr(errors.WithStack(err)), "path", *outPath)
			return exitError
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		slog.Error("cannot encode result", log.ErrAttr(err))
		return exitError
	}

	if res.Err() != nil && res.Chain().Policy() == chain.FailFast {
		return exitStepFailure
	}
	return exitOK
}

func serve(args []string, stderr io.Writer) int {
	defaultAddr := os.Getenv("MLU_ADDR")
	if defaultAddr == "" {
		defaultAddr = ":8080"
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelPath := fs.String("model", "", "model file written by run (output.model)")
	addr := fs.String("addr", defaultAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *modelPath == "" {
		fmt.Fprintln(stderr, "mlu serve: -model is required")
		return exitUsage
	}

	srv, err := server.Open(*modelPath)
	if err != nil {
		slog.Error("cannot load model", log.ErrAttr(err), "path", *modelPath)
		return exitError
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		slog.Error("server stopped", log.ErrAttr(err))
		return exitError
	}
	return exitOK
}
