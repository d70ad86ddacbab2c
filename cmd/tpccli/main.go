package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var serverAddr = flag.String("server", "localhost:8181", "tpc REST API address")

func main() {
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	cli := NewCLI(NewClient(*serverAddr), os.Stdout)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cli.Stop()
		os.Exit(0)
	}()

	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
