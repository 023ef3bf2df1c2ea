package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/semester-scan/internal/adapters/cli"
	"github.com/kirillkom/semester-scan/internal/bootstrap"
	"github.com/kirillkom/semester-scan/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := bootstrap.NewCLIFactory(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "semscan: %v\n", err)
		os.Exit(1)
	}

	code := cli.New(factory, os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
