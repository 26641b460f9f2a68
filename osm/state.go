package osm

import (
	"errors"
	"fmt"
	"sort"
)

// Namespace state errors.
var (
	ErrMissingDataset   = errors.New("missing dataset")
	ErrMissingPartition = errors.New("missing partition")
	ErrMissingObject    = errors.New("missing object")
	ErrMissingVersion   = errors.New("missing version")
	ErrVersionExists    = errors.New("version exists")
)

// ObjectMeta holds the per-version metadata tracked in state.
type ObjectMeta struct {
	SizeBytes   int64
	Rows        int64
	Format      string
	Compression string
}

type objectState struct {
	versions []Version // ascending; the last entry is current
	meta     map[Version]ObjectMeta
}

type partitionState struct {
	objects map[string]*objectState
}

type datasetState struct {
	partitions map[string]*partitionState
}

// State is the in-memory model of datasets, partitions, objects, and their
// version lists. It is the single source of truth plans are compiled against
// and the structure the runtime mutates as actions succeed.
//
// State is single-writer: one planning/execution session owns it at a time.
// Reads between plans see a consistent namespace; no synchronization is
// provided for readers concurrent with an in-flight plan.
type State struct {
	datasets map[DatasetPath]*datasetState
}

// NewState returns an empty namespace.
func NewState() *State {
	return &State{datasets: make(map[DatasetPath]*datasetState)}
}

func newPartitionState() *partitionState {
	return &partitionState{objects: make(map[string]*objectState)}
}

func newDatasetState() *datasetState {
	return &datasetState{partitions: make(map[string]*partitionState)}
}

func (s *State) dataset(path DatasetPath) (*datasetState, error) {
	ds, ok := s.datasets[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDataset, path)
	}
	return ds, nil
}

func (s *State) partition(path PartitionPath) (*partitionState, error) {
	ds, err := s.dataset(path.Dataset)
	if err != nil {
		return nil, err
	}
	ps, ok := ds.partitions[path.Partition]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPartition, path)
	}
	return ps, nil
}

func (s *State) object(path ObjectPath) (*objectState, error) {
	ps, err := s.partition(path.Partition)
	if err != nil {
		return nil, err
	}
	os, ok := ps.objects[path.Key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, path)
	}
	return os, nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// ContainsDataset reports whether the dataset is present.
func (s *State) ContainsDataset(path DatasetPath) bool {
	_, ok := s.datasets[path]
	return ok
}

// ContainsPartition reports whether the partition is present.
func (s *State) ContainsPartition(path PartitionPath) bool {
	_, err := s.partition(path)
	return err == nil
}

// ContainsObject reports whether the object is present with at least one
// live version.
func (s *State) ContainsObject(path ObjectPath) bool {
	_, err := s.object(path)
	return err == nil
}

// Datasets lists every known dataset, ordered by path.
func (s *State) Datasets() []DatasetPath {
	out := make([]DatasetPath, 0, len(s.datasets))
	for path := range s.datasets {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Partitions lists the dataset's partition keys in sorted order.
func (s *State) Partitions(path DatasetPath) ([]string, error) {
	ds, err := s.dataset(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ds.partitions))
	for key := range ds.partitions {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

// Objects lists the partition's object paths ordered by key.
func (s *State) Objects(path PartitionPath) ([]ObjectPath, error) {
	ps, err := s.partition(path)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectPath, 0, len(ps.objects))
	for key := range ps.objects {
		out = append(out, path.Object(key))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Versions returns the object's live versions in ascending order.
func (s *State) Versions(path ObjectPath) ([]Version, error) {
	os, err := s.object(path)
	if err != nil {
		return nil, err
	}
	out := make([]Version, len(os.versions))
	copy(out, os.versions)
	return out, nil
}

// CurrentVersion returns the object's highest live version.
func (s *State) CurrentVersion(path ObjectPath) (Version, error) {
	os, err := s.object(path)
	if err != nil {
		return 0, err
	}
	return os.versions[len(os.versions)-1], nil
}

// NextVersion returns the version a new Create at this path must use: one
// past the current version, or 1 for an absent object.
func (s *State) NextVersion(path ObjectPath) Version {
	os, err := s.object(path)
	if err != nil {
		return 1
	}
	return os.versions[len(os.versions)-1] + 1
}

// Meta returns the metadata recorded for one object version.
func (s *State) Meta(path ObjectPath, version Version) (ObjectMeta, error) {
	os, err := s.object(path)
	if err != nil {
		return ObjectMeta{}, err
	}
	meta, ok := os.meta[version]
	if !ok {
		return ObjectMeta{}, fmt.Errorf("%w: %s@%s", ErrMissingVersion, path, version)
	}
	return meta, nil
}

// -----------------------------------------------------------------------------
// Mutations
//
// Only the runtime (applying successful actions) and the reload surface call
// these. A version enters state only through createVersion and leaves only
// through removeVersion or a scope replacement.
// -----------------------------------------------------------------------------

func (s *State) createVersion(path ObjectPath, version Version, meta ObjectMeta) error {
	ds, ok := s.datasets[path.Partition.Dataset]
	if !ok {
		ds = newDatasetState()
		s.datasets[path.Partition.Dataset] = ds
	}
	ps, ok := ds.partitions[path.Partition.Partition]
	if !ok {
		ps = newPartitionState()
		ds.partitions[path.Partition.Partition] = ps
	}
	os, ok := ps.objects[path.Key]
	if !ok {
		os = &objectState{meta: make(map[Version]ObjectMeta)}
		ps.objects[path.Key] = os
	}
	for _, v := range os.versions {
		if v == version {
			return fmt.Errorf("%w: %s@%s", ErrVersionExists, path, version)
		}
	}
	os.versions = append(os.versions, version)
	sort.Slice(os.versions, func(i, j int) bool { return os.versions[i] < os.versions[j] })
	os.meta[version] = meta
	return nil
}

func (s *State) updateVersion(path ObjectPath, version Version, meta ObjectMeta) error {
	os, err := s.object(path)
	if err != nil {
		return err
	}
	if _, ok := os.meta[version]; !ok {
		return fmt.Errorf("%w: %s@%s", ErrMissingVersion, path, version)
	}
	os.meta[version] = meta
	return nil
}

func (s *State) removeVersion(path ObjectPath, version Version) error {
	os, err := s.object(path)
	if err != nil {
		return err
	}
	idx := -1
	for i, v := range os.versions {
		if v == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s@%s", ErrMissingVersion, path, version)
	}
	os.versions = append(os.versions[:idx], os.versions[idx+1:]...)
	delete(os.meta, version)

	// Prune emptied containers so a fully moved-out scope disappears from
	// the namespace.
	if len(os.versions) == 0 {
		ps, _ := s.partition(path.Partition)
		delete(ps.objects, path.Key)
		if len(ps.objects) == 0 {
			ds, _ := s.dataset(path.Partition.Dataset)
			delete(ds.partitions, path.Partition.Partition)
			if len(ds.partitions) == 0 {
				delete(s.datasets, path.Partition.Dataset)
			}
		}
	}
	return nil
}

// removeScope drops a whole partition, dataset, or the entire namespace.
func (s *State) removeScope(scope Path) error {
	switch p := scope.(type) {
	case Root:
		s.datasets = make(map[DatasetPath]*datasetState)
		return nil
	case DatasetPath:
		if _, ok := s.datasets[p]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingDataset, p)
		}
		delete(s.datasets, p)
		return nil
	case PartitionPath:
		ds, err := s.dataset(p.Dataset)
		if err != nil {
			return err
		}
		if _, ok := ds.partitions[p.Partition]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingPartition, p)
		}
		delete(ds.partitions, p.Partition)
		return nil
	case ObjectPath:
		ps, err := s.partition(p.Partition)
		if err != nil {
			return err
		}
		if _, ok := ps.objects[p.Key]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingObject, p)
		}
		delete(ps.objects, p.Key)
		return nil
	}
	return fmt.Errorf("remove scope: unsupported path %T", scope)
}

// scopeVersions enumerates every live object version under a scope, ordered
// by path then version.
func (s *State) scopeVersions(scope Path) []ObjectVersion {
	var out []ObjectVersion
	for _, dataset := range s.Datasets() {
		partitions, _ := s.Partitions(dataset)
		for _, partition := range partitions {
			objects, _ := s.Objects(dataset.Partition(partition))
			for _, object := range objects {
				if !scope.Contains(object) {
					continue
				}
				versions, _ := s.Versions(object)
				for _, v := range versions {
					out = append(out, ObjectVersion{Path: object, Version: v})
				}
			}
		}
	}
	return out
}

// replaceScope swaps the contents of one scope for freshly enumerated
// contents, leaving everything outside the scope intact.
func (s *State) replaceScope(scope Path, loaded *State) {
	switch p := scope.(type) {
	case Root:
		s.datasets = loaded.datasets
	case DatasetPath:
		if ds, ok := loaded.datasets[p]; ok {
			s.datasets[p] = ds
		} else {
			delete(s.datasets, p)
		}
	case PartitionPath:
		ds, ok := s.datasets[p.Dataset]
		loadedPartition, loadedOK := loaded.datasets[p.Dataset]
		if !loadedOK || loadedPartition.partitions[p.Partition] == nil {
			if ok {
				delete(ds.partitions, p.Partition)
			}
			return
		}
		if !ok {
			ds = newDatasetState()
			s.datasets[p.Dataset] = ds
		}
		ds.partitions[p.Partition] = loadedPartition.partitions[p.Partition]
	case ObjectPath:
		ps, err := s.partition(p.Partition)
		var loadedObject *objectState
		if loadedPartition, err := loaded.partition(p.Partition); err == nil {
			loadedObject = loadedPartition.objects[p.Key]
		}
		if loadedObject == nil {
			if err == nil {
				delete(ps.objects, p.Key)
			}
			return
		}
		if err != nil {
			s.ensurePartition(p.Partition)
			ps, _ = s.partition(p.Partition)
		}
		ps.objects[p.Key] = loadedObject
	}
}

func (s *State) ensurePartition(path PartitionPath) {
	ds, ok := s.datasets[path.Dataset]
	if !ok {
		ds = newDatasetState()
		s.datasets[path.Dataset] = ds
	}
	if _, ok := ds.partitions[path.Partition]; !ok {
		ds.partitions[path.Partition] = newPartitionState()
	}
}
