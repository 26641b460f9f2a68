// Package osm manages a hierarchical object store: datasets contain
// partitions, partitions contain named objects, and every object carries an
// ordered list of immutable versions.
//
// Operator verbs (move, copy, remove, sample, repartition, compress,
// generate) compile into primitive storage actions. A conflict relation over
// action effects arranges those actions into layers of a dependency DAG, and
// a runtime executes each layer's actions concurrently against a pluggable
// storage backend.
package osm

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Path model
// -----------------------------------------------------------------------------

// Path identifies a scope in the namespace: the whole root, a dataset, a
// partition, or a single object. Paths are immutable values compared
// structurally.
type Path interface {
	// Contains reports whether the given object falls under this scope.
	Contains(o ObjectPath) bool

	fmt.Stringer
}

// Root is the whole-namespace scope. Used by jobs that need every dataset
// reloaded before planning.
type Root struct{}

// Contains always reports true: every object is under the root.
func (Root) Contains(ObjectPath) bool { return true }

func (Root) String() string { return "/" }

// DatasetPath identifies a named dataset inside a bucket.
type DatasetPath struct {
	Bucket string
	Name   string
}

// NewDatasetPath builds a DatasetPath from a bucket and dataset name.
func NewDatasetPath(bucket, name string) DatasetPath {
	return DatasetPath{Bucket: bucket, Name: name}
}

// Partition returns the path of the named partition under this dataset.
// Partition keys are rendered hive-style, for example "date=2020-01".
func (p DatasetPath) Partition(partition string) PartitionPath {
	return PartitionPath{Dataset: p, Partition: partition}
}

// Contains reports whether the object belongs to this dataset.
func (p DatasetPath) Contains(o ObjectPath) bool {
	return o.Partition.Dataset == p
}

func (p DatasetPath) String() string {
	return p.Bucket + "/" + p.Name
}

// PartitionPath identifies one partition of a dataset.
type PartitionPath struct {
	Dataset   DatasetPath
	Partition string
}

// Object returns the path of the named object inside this partition.
func (p PartitionPath) Object(key string) ObjectPath {
	return ObjectPath{Partition: p, Key: key}
}

// Contains reports whether the object belongs to this partition.
func (p PartitionPath) Contains(o ObjectPath) bool {
	return o.Partition == p
}

func (p PartitionPath) String() string {
	return p.Dataset.String() + "/" + p.Partition
}

// ObjectPath identifies one named object. Containment is total and strict:
// an object always resolves to exactly one partition and dataset.
type ObjectPath struct {
	Partition PartitionPath
	Key       string
}

// Contains reports whether o is this exact object.
func (p ObjectPath) Contains(o ObjectPath) bool {
	return o == p
}

func (p ObjectPath) String() string {
	return p.Partition.String() + "/" + p.Key
}

// WithPartition returns the same object key addressed under a different
// partition of the same dataset.
func (p ObjectPath) WithPartition(partition string) ObjectPath {
	return ObjectPath{Partition: p.Partition.Dataset.Partition(partition), Key: p.Key}
}

// Format returns the object's storage format inferred from the key
// extension, or "" when the key has none.
func (p ObjectPath) Format() string {
	if idx := strings.LastIndexByte(p.Key, '.'); idx >= 0 && idx < len(p.Key)-1 {
		return p.Key[idx+1:]
	}
	return ""
}

// overlaps reports whether two scopes share at least one possible object.
func overlaps(a, b Path) bool {
	switch ap := a.(type) {
	case Root:
		return true
	case DatasetPath:
		return containsScope(ap, b) || containsScope(b, ap)
	case PartitionPath:
		return containsScope(ap, b) || containsScope(b, ap)
	case ObjectPath:
		switch bp := b.(type) {
		case Root:
			return true
		case ObjectPath:
			return ap == bp
		default:
			return bp.Contains(ap)
		}
	}
	return false
}

// containsScope reports whether outer fully contains inner.
func containsScope(outer, inner Path) bool {
	switch in := inner.(type) {
	case Root:
		_, isRoot := outer.(Root)
		return isRoot
	case DatasetPath:
		switch out := outer.(type) {
		case Root:
			return true
		case DatasetPath:
			return out == in
		}
		return false
	case PartitionPath:
		switch out := outer.(type) {
		case Root:
			return true
		case DatasetPath:
			return out == in.Dataset
		case PartitionPath:
			return out == in
		}
		return false
	case ObjectPath:
		return outer.Contains(in)
	}
	return false
}

// -----------------------------------------------------------------------------
// Versions
// -----------------------------------------------------------------------------

// Version numbers one revision of an object's payload. Versions increase
// monotonically and are scoped to a single ObjectPath.
type Version int64

func (v Version) String() string {
	return fmt.Sprintf("v%d", int64(v))
}

// ObjectVersion names one concrete revision of one object.
type ObjectVersion struct {
	Path    ObjectPath
	Version Version
}

func (ov ObjectVersion) String() string {
	return ov.Path.String() + "@" + ov.Version.String()
}
