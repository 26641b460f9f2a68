package osm

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Read-only queries
//
// Queries are answered straight from state after dependency reload. They
// never emit actions and never mutate state.
// -----------------------------------------------------------------------------

// listObjectsQuery renders one partition's objects.
type listObjectsQuery struct {
	partition PartitionPath
}

// NewListObjects lists the objects of one partition.
func NewListObjects(partition PartitionPath) Query {
	return &listObjectsQuery{partition: partition}
}

func (q *listObjectsQuery) Name() string {
	return fmt.Sprintf("list(%s)", q.partition)
}

func (q *listObjectsQuery) Dependencies() []Path {
	return []Path{q.partition}
}

func (q *listObjectsQuery) Actions(*State) ([]*Action, error) { return nil, nil }

func (q *listObjectsQuery) Render(state *State) (string, error) {
	objects, err := state.Objects(q.partition)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "List Objects for %q:", q.partition.String())
	for _, object := range objects {
		current, err := state.CurrentVersion(object)
		if err != nil {
			return "", err
		}
		meta, err := state.Meta(object, current)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "\n  - %s (version: %s, size: %s, format: %s)",
			object.Key, current, humanBytes(meta.SizeBytes), meta.Format)
	}
	return out.String(), nil
}

// sizeOfQuery renders a dataset size report.
type sizeOfQuery struct {
	dataset    DatasetPath
	partitions []string
	detailed   bool
}

// NewSizeOf reports the size of a dataset, optionally restricted to the
// named partitions. Detailed reports include per-object lines.
func NewSizeOf(dataset DatasetPath, partitions []string, detailed bool) Query {
	return &sizeOfQuery{dataset: dataset, partitions: partitions, detailed: detailed}
}

func (q *sizeOfQuery) Name() string {
	return fmt.Sprintf("size(%s)", q.dataset)
}

func (q *sizeOfQuery) Dependencies() []Path {
	return []Path{q.dataset}
}

func (q *sizeOfQuery) Actions(*State) ([]*Action, error) { return nil, nil }

func (q *sizeOfQuery) Render(state *State) (string, error) {
	partitions, err := state.Partitions(q.dataset)
	if err != nil {
		return "", err
	}
	if len(q.partitions) > 0 {
		wanted := make(map[string]struct{}, len(q.partitions))
		for _, partition := range q.partitions {
			wanted[partition] = struct{}{}
		}
		filtered := partitions[:0]
		for _, partition := range partitions {
			if _, ok := wanted[partition]; ok {
				filtered = append(filtered, partition)
			}
		}
		partitions = filtered
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Size of %q:", q.dataset.String())

	var total int64
	for _, partition := range partitions {
		path := q.dataset.Partition(partition)
		objects, err := state.Objects(path)
		if err != nil {
			return "", err
		}
		var partitionSize int64
		type objectLine struct {
			key  string
			size int64
		}
		lines := make([]objectLine, 0, len(objects))
		for _, object := range objects {
			versions, err := state.Versions(object)
			if err != nil {
				return "", err
			}
			var objectSize int64
			for _, version := range versions {
				meta, err := state.Meta(object, version)
				if err != nil {
					return "", err
				}
				objectSize += meta.SizeBytes
			}
			partitionSize += objectSize
			lines = append(lines, objectLine{key: object.Key, size: objectSize})
		}
		total += partitionSize

		fmt.Fprintf(&out, "\n  - %s (objects: %d, size: %s)",
			partition, len(objects), humanBytes(partitionSize))
		if q.detailed {
			for _, line := range lines {
				fmt.Fprintf(&out, "\n    - %s (size: %s)", line.key, humanBytes(line.size))
			}
		}
	}
	fmt.Fprintf(&out, "\ntotal: %s", humanBytes(total))
	return out.String(), nil
}

const (
	kib = int64(1024)
	mib = kib * 1024

	kibThreshold = 10 * kib
	mibThreshold = 10 * mib
)

// humanBytes renders a size with the unit thresholds reports use.
func humanBytes(size int64) string {
	switch {
	case size > mibThreshold:
		return fmt.Sprintf("%.2f MiB", float64(size)/float64(mib))
	case size > kibThreshold:
		return fmt.Sprintf("%.2f KiB", float64(size)/float64(kib))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
