// Command ioruntime-echo is a small demo server exercising the runtime's
// TCP and UDP paths end to end, grounded on the original
// examples/tcp_server.rs and this module's wider cobra-CLI lineage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ioruntime-echo",
		Short: "Echo servers built on the io_uring runtime",
		Long: `ioruntime-echo runs a TCP or UDP echo server on top of this module's
single-threaded io_uring runtime, exercising accept/connect/read/write/
sendmsg/recvmsg through a real kernel ring rather than a mock.`,
	}

	rootCmd.AddCommand(
		newTCPEchoCommand(),
		newUDPEchoCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
