// ledgernoded runs a ledgercore P2P node.
//
// Usage:
//
//	ledgernoded [--mine] [--seeds=addr1,addr2] [--p2p-workers=4]
//	ledgernoded --help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/ledgercore/config"
	"github.com/Klingon-tech/ledgercore/internal/node"
)

func main() {
	flags := config.ParseFlags()
	if flags.Help {
		return
	}

	n, err := node.New(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting node: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err := n.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping node: %v\n", err)
		os.Exit(1)
	}
}
