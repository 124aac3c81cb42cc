// Command wsrpcd serves JSON-RPC 2.0 over websocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "wsrpcd",
	Version:       version,
	Short:         "wsrpcd is a JSON-RPC 2.0 server speaking over websocket.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the wsrpcd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to a TOML config file")
	serveCmd.Flags().StringSlice("env", nil, "dotenv files to load before reading WSRPC_* variables (default .env)")
	serveCmd.Flags().StringP("listen", "l", "", "listen address, overrides listen_addr")

	discoverCmd.Flags().StringSlice("etcd", []string{"localhost:2379"}, "etcd endpoints")
	discoverCmd.Flags().String("service", "wsrpc", "service name the servers announce under")
	discoverCmd.Flags().BoolP("watch", "w", false, "keep printing the instance list on every change")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wsrpcd:", err)
		os.Exit(1)
	}
}
