package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for proxychk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxychk",
		Short: "Multi-protocol proxy reachability checker",
		Long: `proxychk checks proxy endpoints for reachability and reports which of
HTTP, HTTPS, SOCKS4 and SOCKS5 each one serves.

Each endpoint is first probed with a raw TCP connect. Protocol support is
then asked from an external validation service, falling back to fetching
test targets through the proxy when the service cannot answer.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
