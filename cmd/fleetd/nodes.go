package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/store"
)

func newNodesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Export or import the node table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("nodes requires a subcommand: export|import")
		},
	}
	export := &cobra.Command{
		Use:     "export <file>",
		Short:   "Write every stored node to a CBOR snapshot",
		Example: "  fleetd nodes export nodes.cbor",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, closeDB, err := openNodes(opts)
			if err != nil {
				return err
			}
			defer closeDB()
			nodes, err := ns.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.WriteSnapshot(args[0], nodes, time.Now().UTC()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d nodes to %s\n", len(nodes), args[0])
			return nil
		},
	}
	imp := &cobra.Command{
		Use:     "import <file>",
		Short:   "Replace the node table with a CBOR snapshot",
		Long:    "Replace the node table with a CBOR snapshot. Run it while the coordinator is stopped.",
		Example: "  fleetd nodes import nodes.cbor",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := store.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			ns, closeDB, err := openNodes(opts)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := ns.Replace(cmd.Context(), snap.Nodes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes from %s (written %s)\n",
				len(snap.Nodes), args[0], snap.CreatedOn.Format(time.RFC3339))
			return nil
		},
	}
	cmd.AddCommand(export, imp)
	return cmd
}

func openNodes(opts *options) (*store.NodeStore, func(), error) {
	cfg, err := opts.load(nil)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store.NewNodeStore(db), func() { db.Close() }, nil
}
