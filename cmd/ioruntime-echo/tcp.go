package main

import (
	"fmt"
	"net/netip"

	"github.com/parastrom/ioruntime"
	ioruntimenet "github.com/parastrom/ioruntime/net"
	"github.com/spf13/cobra"
)

func newTCPEchoCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "tcp-echo",
		Short: "Run a TCP echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTCPEcho(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "address to listen on")
	return cmd
}

func runTCPEcho(addrStr string) error {
	addr, err := netip.ParseAddrPort(addrStr)
	if err != nil {
		return fmt.Errorf("ioruntime-echo: parse addr: %w", err)
	}

	rt, err := ioruntime.New()
	if err != nil {
		return fmt.Errorf("ioruntime-echo: new runtime: %w", err)
	}

	_, err = rt.Run(func(root *ioruntime.Task) (any, error) {
		listener, err := ioruntimenet.Listen(addr, 128)
		if err != nil {
			return nil, err
		}
		defer listener.Close()

		fmt.Printf("tcp-echo listening on %s\n", addrStr)

		for {
			stream, peer, err := listener.Accept(root)
			if err != nil {
				return nil, err
			}
			fmt.Printf("accepted connection from %s\n", peer)

			ioruntime.Spawn(root, func(t *ioruntime.Task) (any, error) {
				defer stream.Close(t)
				return nil, tcpEchoLoop(t, stream, peer)
			})
		}
	})
	return err
}

func tcpEchoLoop(t *ioruntime.Task, stream *ioruntimenet.Stream, peer fmt.Stringer) error {
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(t, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Printf("connection closed by %v\n", peer)
			return nil
		}
		if _, err := stream.Write(t, buf[:n]); err != nil {
			return err
		}
	}
}
