// Move and copy commands for the osm CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelini/osm/osm"
)

var moveCmd = &cobra.Command{
	Use:   "move <source> <target>",
	Short: "Move a dataset, partition, or object",
	Long: `Move every object under the source path to the same layout under the
target path, replacing target objects of the same name and removing the
emptied source. Source and target must have the same depth.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := transferJobFor("move", args[0], args[1])
		if err != nil {
			return err
		}
		return runBatch(cmd, job)
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy <source> <target>",
	Short: "Copy a dataset, partition, or object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := transferJobFor("copy", args[0], args[1])
		if err != nil {
			return err
		}
		return runBatch(cmd, job)
	},
}

// transferJobFor builds the move or copy job matching the scope of its
// arguments.
func transferJobFor(verb, sourceArg, targetArg string) (osm.Job, error) {
	source, err := parsePath(sourceArg)
	if err != nil {
		return nil, err
	}
	target, err := parsePath(targetArg)
	if err != nil {
		return nil, err
	}

	move := verb == "move"
	switch src := source.(type) {
	case osm.DatasetPath:
		dst, ok := target.(osm.DatasetPath)
		if !ok {
			break
		}
		if move {
			return osm.NewMoveDataset(src, dst), nil
		}
		return osm.NewCopyDataset(src, dst), nil
	case osm.PartitionPath:
		dst, ok := target.(osm.PartitionPath)
		if !ok {
			break
		}
		if move {
			return osm.NewMovePartition(src, dst), nil
		}
		return osm.NewCopyPartition(src, dst), nil
	case osm.ObjectPath:
		dst, ok := target.(osm.ObjectPath)
		if !ok {
			break
		}
		if move {
			return osm.NewMoveObject(src, dst), nil
		}
		return osm.NewCopyObject(src, dst), nil
	}
	return nil, fmt.Errorf("%s: source %q and target %q must name the same scope", verb, sourceArg, targetArg)
}
