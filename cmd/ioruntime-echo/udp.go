package main

import (
	"fmt"
	"net/netip"

	"github.com/parastrom/ioruntime"
	ioruntimenet "github.com/parastrom/ioruntime/net"
	"github.com/spf13/cobra"
)

func newUDPEchoCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "udp-echo",
		Short: "Run a UDP echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUDPEcho(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8081", "address to listen on")
	return cmd
}

func runUDPEcho(addrStr string) error {
	addr, err := netip.ParseAddrPort(addrStr)
	if err != nil {
		return fmt.Errorf("ioruntime-echo: parse addr: %w", err)
	}

	rt, err := ioruntime.New()
	if err != nil {
		return fmt.Errorf("ioruntime-echo: new runtime: %w", err)
	}

	_, err = rt.Run(func(root *ioruntime.Task) (any, error) {
		packet, err := ioruntimenet.ListenPacket(addr)
		if err != nil {
			return nil, err
		}
		defer packet.Close(root)

		fmt.Printf("udp-echo listening on %s\n", addrStr)

		buf := make([]byte, 4096)
		for {
			n, from, err := packet.RecvFrom(root, buf)
			if err != nil {
				return nil, err
			}
			if _, err := packet.SendTo(root, buf[:n], from); err != nil {
				return nil, err
			}
		}
	})
	return err
}
