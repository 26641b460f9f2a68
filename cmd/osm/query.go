// Read-only commands for the osm CLI: list and size.
package main

import (
	"github.com/spf13/cobra"

	"github.com/angelini/osm/osm"
)

var listCmd = &cobra.Command{
	Use:   "list <partition>",
	Short: "List the objects of a partition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partition, err := parsePartition(args[0])
		if err != nil {
			return err
		}
		return runBatch(cmd, osm.NewListObjects(partition))
	},
}

var (
	sizePartitions []string
	sizeDetailed   bool
)

var sizeCmd = &cobra.Command{
	Use:   "size <dataset>",
	Short: "Report the size of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, err := parseDataset(args[0])
		if err != nil {
			return err
		}
		return runBatch(cmd, osm.NewSizeOf(dataset, sizePartitions, sizeDetailed))
	},
}

func init() {
	sizeCmd.Flags().StringSliceVar(&sizePartitions, "partition", nil, "restrict to the named partitions (repeatable)")
	sizeCmd.Flags().BoolVar(&sizeDetailed, "detailed", false, "include per-object lines")
}
