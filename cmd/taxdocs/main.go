package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/taxdocs/internal/app"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/server"
)

const usage = `usage: taxdocs [-config file] [-addr host:port] <command> [flags] [args]

commands:
  upload     <file>...     process one or more files
  ingest-dir <dir>         process every supported file under dir
  list                     list documents
  show       <id>          document, latest extraction and fields
  update     <id>          edit filer, tax year, doc type or notes
  review     <id>          mark a document as needing review
  reprocess  <id>          classify and extract again
  delete     <id>          remove a document and its stored file
  export                   export json, csv_long, csv_wide or xlsx
  stats                    document counts
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	root := flag.NewFlagSet("taxdocs", flag.ExitOnError)
	root.Usage = func() { printError("%s", usage) }
	configPath := root.String("config", "", "config file (default ~/.config/taxdocs/config.yaml)")
	addr := root.String("addr", "", "talk to a running taxdocsd instead of opening the store")
	_ = root.Parse(os.Args[1:])
	if root.NArg() == 0 {
		root.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = common.EnsureRequestID(ctx)

	name, args := root.Arg(0), root.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		printError("Error: unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	api, closeAPI, err := connect(ctx, cfg, *addr, cmd.needsPipeline, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeAPI()

	if err := cmd.run(ctx, api, args, os.Stdout); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

// connect returns the daemon client when addr is set, otherwise an
// in-process service over the local store.
func connect(ctx context.Context, cfg *common.Config, addr string, pipeline bool, logger *slog.Logger) (server.TaxDocsServer, func(), error) {
	if addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, err
		}
		return server.NewClient(conn), func() { _ = conn.Close() }, nil
	}

	var (
		a   *app.App
		err error
	)
	if pipeline {
		a, err = app.Build(ctx, cfg, logger)
	} else {
		a, err = app.OpenStore(ctx, cfg, logger)
	}
	if err != nil {
		return nil, nil, err
	}
	return a.Service(nil), a.Close, nil
}
