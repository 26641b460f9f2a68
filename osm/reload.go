package osm

import (
	"context"
	"fmt"
)

// Reload re-enumerates backend contents under the given scope into state,
// replacing exactly that scope and nothing else. The runtime calls this for
// every path a job declares as a dependency before compiling the job's
// actions.
func Reload(ctx context.Context, store Store, state *State, scope Path) error {
	loaded := NewState()

	switch p := scope.(type) {
	case Root:
		datasets, err := store.ListDatasets(ctx)
		if err != nil {
			return fmt.Errorf("reload %s: %w", scope, err)
		}
		for _, dataset := range datasets {
			if err := loadDataset(ctx, store, loaded, dataset); err != nil {
				return err
			}
		}
	case DatasetPath:
		if err := loadDataset(ctx, store, loaded, p); err != nil {
			return err
		}
	case PartitionPath:
		if err := loadPartition(ctx, store, loaded, p); err != nil {
			return err
		}
	case ObjectPath:
		if err := loadPartition(ctx, store, loaded, p.Partition); err != nil {
			return err
		}
	default:
		return fmt.Errorf("reload: unsupported scope %T", scope)
	}

	state.replaceScope(scope, loaded)
	return nil
}

func loadDataset(ctx context.Context, store Store, loaded *State, path DatasetPath) error {
	partitions, err := store.ListPartitions(ctx, path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	if len(partitions) > 0 {
		for _, partition := range partitions {
			if err := loadPartition(ctx, store, loaded, path.Partition(partition)); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadPartition(ctx context.Context, store Store, loaded *State, path PartitionPath) error {
	entries, err := store.ListObjects(ctx, path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil
	}
	loaded.ensurePartition(path)
	for _, entry := range entries {
		object := path.Object(entry.Key)
		meta := ObjectMeta{SizeBytes: entry.SizeBytes, Format: object.Format()}
		if err := loaded.createVersion(object, entry.Version, meta); err != nil {
			return fmt.Errorf("reload %s: %w", path, err)
		}
	}
	return nil
}
