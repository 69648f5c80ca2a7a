// Package main starts a terminal adventure session against the generative
// backend. The session is ephemeral: history lives in memory and character
// sheet updates are logged, not stored.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	chatcmd "github.com/louisbranch/loreweaver/internal/cmd/chat"
)

func main() {
	cfg, err := chatcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CHAT] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chatcmd.Run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("chat session failed: %v", err)
	}
}
