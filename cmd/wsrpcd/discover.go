package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wsrpc/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Lists the servers announced in etcd",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, _ := cmd.Flags().GetStringSlice("etcd")
		service, _ := cmd.Flags().GetString("service")
		watch, _ := cmd.Flags().GetBool("watch")

		reg, err := discovery.NewEtcdRegistry(endpoints, 5*time.Second, nil)
		if err != nil {
			return err
		}
		defer reg.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		instances, err := reg.Discover(ctx, service)
		if err != nil {
			return err
		}
		printInstances(out, instances)
		if !watch {
			return nil
		}
		for instances := range reg.Watch(ctx, service) {
			fmt.Fprintln(out, "--")
			printInstances(out, instances)
		}
		return nil
	},
}

func printInstances(w io.Writer, instances []discovery.Instance) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "no instances")
		return
	}
	for _, inst := range instances {
		fmt.Fprintf(w, "ws://%s%s\n", inst.Addr, inst.Path)
	}
}
