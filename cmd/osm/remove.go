// Remove command for the osm CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelini/osm/osm"
)

var removeCmd = &cobra.Command{
	Use:   "remove <path>...",
	Short: "Remove a dataset, a partition, or a batch of objects",
	Long: `Remove a whole dataset or partition, or the current version of each
named object. Object arguments may be mixed across partitions; scope
arguments (dataset or partition) must be the only argument.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := make([]osm.Path, len(args))
		for i, arg := range args {
			path, err := parsePath(arg)
			if err != nil {
				return err
			}
			paths[i] = path
		}

		if _, ok := paths[0].(osm.ObjectPath); !ok {
			if len(paths) > 1 {
				return fmt.Errorf("remove: a dataset or partition must be the only argument")
			}
			switch p := paths[0].(type) {
			case osm.DatasetPath:
				return runBatch(cmd, osm.NewRemoveDataset(p))
			case osm.PartitionPath:
				return runBatch(cmd, osm.NewRemovePartition(p))
			}
		}

		objects := make([]osm.ObjectPath, len(paths))
		for i, path := range paths {
			object, ok := path.(osm.ObjectPath)
			if !ok {
				return fmt.Errorf("remove: cannot mix %q with object paths", args[i])
			}
			objects[i] = object
		}
		return runBatch(cmd, osm.NewRemoveObjects(objects))
	},
}
