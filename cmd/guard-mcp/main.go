package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/groupguard/feishu-guard/mcpserver"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	srv := mcpserver.NewServer()
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "guard-mcp: %v\n", err)
		os.Exit(1)
	}
}
