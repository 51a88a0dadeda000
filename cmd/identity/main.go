package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	identitycmd "github.com/alexanders1003/scribble.identity/internal/cmd/identity"
	"github.com/alexanders1003/scribble.identity/internal/platform/config"
)

func main() {
	cfg, err := identitycmd.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[IDENTITY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := identitycmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
