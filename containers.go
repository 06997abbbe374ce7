package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/murka/selectel-storage-client/pkg/selectel"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show account usage",
		Long: `Show the number of containers and objects and the bytes used by the
account. The service refuses this request for some accounts.`,
		Args: cobra.NoArgs,
		RunE: runInfo,
	}
}

func newContainersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "containers",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE:  runContainers,
	}

	addListFlags(cmd)

	return cmd
}

func newMkcontainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkcontainer <name>",
		Short: "Create a container",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkcontainer,
	}

	cmd.Flags().String("type", string(selectel.ContainerPrivate), "container type: private, public or gallery")

	return cmd
}

func newRmcontainerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmcontainer <name>",
		Short: "Delete an empty container",
		Args:  cobra.ExactArgs(1),
		RunE:  runRmcontainer,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <container>",
		Short: "Display container metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

// addListFlags registers the paging and filtering flags shared by the
// listing commands.
func addListFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "maximum number of entries (0 = server default)")
	cmd.Flags().String("marker", "", "list entries after this name")
	cmd.Flags().String("prefix", "", "only entries starting with this prefix")
}

func listOptionsFromFlags(cmd *cobra.Command) selectel.ListOptions {
	limit, _ := cmd.Flags().GetInt("limit")
	marker, _ := cmd.Flags().GetString("marker")
	prefix, _ := cmd.Flags().GetString("prefix")

	opts := selectel.ListOptions{
		Format: selectel.FormatJSON,
		Limit:  limit,
		Marker: marker,
		Prefix: prefix,
	}

	if f := cmd.Flags().Lookup("delimiter"); f != nil {
		opts.Delimiter = f.Value.String()
	}

	return opts
}

// accountInfoJSON is the JSON output schema for info.
type accountInfoJSON struct {
	Containers int64 `json:"containers"`
	Objects    int64 `json:"objects"`
	Bytes      int64 `json:"bytes"`
}

func runInfo(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		info, err := c.AccountInfo(ctx)
		if err != nil {
			return fmt.Errorf("fetching account info: %w", err)
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, accountInfoJSON{
				Containers: info.ContainerCount,
				Objects:    info.ObjectCount,
				Bytes:      info.BytesUsed,
			})
		}

		fmt.Fprintf(cc.Out, "Containers: %d\n", info.ContainerCount)
		fmt.Fprintf(cc.Out, "Objects:    %d\n", info.ObjectCount)
		fmt.Fprintf(cc.Out, "Used:       %s\n", formatSize(info.BytesUsed))

		return nil
	})
}

func runContainers(cmd *cobra.Command, _ []string) error {
	opts := listOptionsFromFlags(cmd)

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		listing, err := c.ListContainers(ctx, opts)
		if err != nil {
			return fmt.Errorf("listing containers: %w", err)
		}

		switch {
		case cc.Flags.JSON:
			return printJSON(cc.Out, listing.Containers)
		case !cc.tableOutput():
			printLines(cc.Out, listing.Names)
			return nil
		}

		rows := make([][]string, 0, len(listing.Containers))
		for _, ct := range listing.Containers {
			rows = append(rows, []string{
				ct.Name, string(ct.Type), strconv.FormatInt(ct.Count, 10), formatSize(ct.Bytes),
			})
		}

		printTable(cc.Out, []string{"NAME", "TYPE", "OBJECTS", "SIZE"}, rows)

		return nil
	})
}

func runMkcontainer(cmd *cobra.Command, args []string) error {
	name := args[0]
	typ, _ := cmd.Flags().GetString("type")

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		if err := c.CreateContainer(ctx, name, selectel.ContainerType(typ)); err != nil {
			return fmt.Errorf("creating container %q: %w", name, err)
		}

		cc.Statusf("Created %s container %s\n", typ, name)

		return nil
	})
}

func runRmcontainer(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		if err := c.DeleteContainer(ctx, name); err != nil {
			return fmt.Errorf("deleting container %q: %w", name, err)
		}

		cc.Statusf("Deleted container %s\n", name)

		return nil
	})
}

// containerStatJSON is the JSON output schema for stat.
type containerStatJSON struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Objects int64  `json:"objects"`
	Bytes   int64  `json:"bytes"`
}

func runStat(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		info, err := c.ContainerInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("stat %q: %w", name, err)
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, containerStatJSON{
				Name:    info.Name,
				Type:    string(info.Type),
				Objects: info.ObjectCount,
				Bytes:   info.BytesUsed,
			})
		}

		fmt.Fprintf(cc.Out, "Name:    %s\n", info.Name)
		fmt.Fprintf(cc.Out, "Type:    %s\n", info.Type)
		fmt.Fprintf(cc.Out, "Objects: %d\n", info.ObjectCount)
		fmt.Fprintf(cc.Out, "Size:    %s (%d bytes)\n", formatSize(info.BytesUsed), info.BytesUsed)

		return nil
	})
}
