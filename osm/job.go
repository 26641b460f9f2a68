package osm

import (
	"fmt"
)

// Job is one operator verb plus its parameters. A job declares the paths
// whose state must be fresh before planning and compiles, as a pure function
// of that state, into the actions that implement the verb. Compilation is
// deterministic and fails whole when a required source path is absent.
type Job interface {
	// Name identifies the job in reports, for example "move(a/b -> a/c)".
	Name() string

	// Dependencies lists the paths the runtime reloads before Actions runs.
	Dependencies() []Path

	// Actions compiles the job against current state. Read-only jobs return
	// no actions.
	Actions(state *State) ([]*Action, error)
}

// Query is a read-only job: it is answered directly from state and never
// contributes actions to a plan.
type Query interface {
	Job

	// Render produces the query's human-readable answer.
	Render(state *State) (string, error)
}

// -----------------------------------------------------------------------------
// Reload verbs
// -----------------------------------------------------------------------------

// reloadJob freshens one scope. The reload itself is the dependency
// resolution; no actions are compiled.
type reloadJob struct {
	scope Path
}

// NewReloadAll re-enumerates every dataset before planning.
func NewReloadAll() Job {
	return &reloadJob{scope: Root{}}
}

// NewReloadDataset re-enumerates one dataset before planning.
func NewReloadDataset(path DatasetPath) Job {
	return &reloadJob{scope: path}
}

// NewReloadPartition re-enumerates one partition before planning.
func NewReloadPartition(path PartitionPath) Job {
	return &reloadJob{scope: path}
}

func (j *reloadJob) Name() string         { return fmt.Sprintf("reload(%s)", j.scope) }
func (j *reloadJob) Dependencies() []Path { return []Path{j.scope} }

func (j *reloadJob) Actions(*State) ([]*Action, error) { return nil, nil }

// -----------------------------------------------------------------------------
// Copy / move / remove family
// -----------------------------------------------------------------------------

// objectPair maps one source object onto its target path.
type objectPair struct {
	source ObjectPath
	target ObjectPath
}

// transferActions compiles the shared move/copy shape: remove pre-existing
// target versions, copy source current versions to fresh target versions,
// and, for moves, remove the source versions afterwards. Groups are emitted
// in that order; execution order still comes solely from the effect model.
func transferActions(state *State, pairs []objectPair, removeSource bool) ([]*Action, error) {
	var actions []*Action

	for _, pair := range pairs {
		if current, err := state.CurrentVersion(pair.target); err == nil {
			actions = append(actions, &Action{Kind: Remove, Scope: pair.target, Version: current})
		}
	}
	for _, pair := range pairs {
		current, err := state.CurrentVersion(pair.source)
		if err != nil {
			return nil, err
		}
		actions = append(actions, &Action{
			Kind:    Create,
			Scope:   pair.target,
			Version: state.NextVersion(pair.target),
			Sources: []ObjectVersion{{Path: pair.source, Version: current}},
		})
	}
	if removeSource {
		for _, pair := range pairs {
			current, err := state.CurrentVersion(pair.source)
			if err != nil {
				return nil, err
			}
			actions = append(actions, &Action{Kind: Remove, Scope: pair.source, Version: current})
		}
	}
	return actions, nil
}

// datasetPairs maps every object of the source dataset onto the same
// partition and key under the target dataset.
func datasetPairs(state *State, source, target DatasetPath) ([]objectPair, error) {
	partitions, err := state.Partitions(source)
	if err != nil {
		return nil, err
	}
	var pairs []objectPair
	for _, partition := range partitions {
		objects, err := state.Objects(source.Partition(partition))
		if err != nil {
			return nil, err
		}
		for _, object := range objects {
			pairs = append(pairs, objectPair{
				source: object,
				target: target.Partition(partition).Object(object.Key),
			})
		}
	}
	return pairs, nil
}

func partitionPairs(state *State, source, target PartitionPath) ([]objectPair, error) {
	objects, err := state.Objects(source)
	if err != nil {
		return nil, err
	}
	pairs := make([]objectPair, len(objects))
	for i, object := range objects {
		pairs[i] = objectPair{source: object, target: target.Object(object.Key)}
	}
	return pairs, nil
}

type transferJob struct {
	verb      string
	source    Path
	target    Path
	removeSrc bool
	pairsOf   func(*State) ([]objectPair, error)
}

func (j *transferJob) Name() string {
	return fmt.Sprintf("%s(%s -> %s)", j.verb, j.source, j.target)
}

func (j *transferJob) Dependencies() []Path {
	return []Path{j.source, j.target}
}

func (j *transferJob) Actions(state *State) ([]*Action, error) {
	if j.source.String() == j.target.String() {
		return nil, fmt.Errorf("%w: %s source and target are the same path %s",
			ErrInvalidArgument, j.verb, j.source)
	}
	pairs, err := j.pairsOf(state)
	if err != nil {
		return nil, err
	}
	return transferActions(state, pairs, j.removeSrc)
}

// NewCopyDataset copies every object of source into target, replacing
// target objects of the same name.
func NewCopyDataset(source, target DatasetPath) Job {
	return &transferJob{
		verb:   "copy",
		source: source,
		target: target,
		pairsOf: func(state *State) ([]objectPair, error) {
			return datasetPairs(state, source, target)
		},
	}
}

// NewMoveDataset moves every object of source into target and removes the
// emptied source dataset.
func NewMoveDataset(source, target DatasetPath) Job {
	return &transferJob{
		verb:      "move",
		source:    source,
		target:    target,
		removeSrc: true,
		pairsOf: func(state *State) ([]objectPair, error) {
			return datasetPairs(state, source, target)
		},
	}
}

// NewCopyPartition copies every object of the source partition into the
// target partition.
func NewCopyPartition(source, target PartitionPath) Job {
	return &transferJob{
		verb:   "copy",
		source: source,
		target: target,
		pairsOf: func(state *State) ([]objectPair, error) {
			return partitionPairs(state, source, target)
		},
	}
}

// NewMovePartition moves every object of the source partition into the
// target partition and removes the emptied source partition.
func NewMovePartition(source, target PartitionPath) Job {
	return &transferJob{
		verb:      "move",
		source:    source,
		target:    target,
		removeSrc: true,
		pairsOf: func(state *State) ([]objectPair, error) {
			return partitionPairs(state, source, target)
		},
	}
}

// NewCopyObject copies one object's current version to the target path.
func NewCopyObject(source, target ObjectPath) Job {
	return &transferJob{
		verb:   "copy",
		source: source,
		target: target,
		pairsOf: func(*State) ([]objectPair, error) {
			return []objectPair{{source: source, target: target}}, nil
		},
	}
}

// NewMoveObject moves one object's current version to the target path.
func NewMoveObject(source, target ObjectPath) Job {
	return &transferJob{
		verb:      "move",
		source:    source,
		target:    target,
		removeSrc: true,
		pairsOf: func(*State) ([]objectPair, error) {
			return []objectPair{{source: source, target: target}}, nil
		},
	}
}

// removeJob deletes a whole scope (dataset or partition) structurally.
type removeJob struct {
	scope Path
}

// NewRemoveDataset removes a dataset and everything under it.
func NewRemoveDataset(path DatasetPath) Job {
	return &removeJob{scope: path}
}

// NewRemovePartition removes a partition and everything under it.
func NewRemovePartition(path PartitionPath) Job {
	return &removeJob{scope: path}
}

func (j *removeJob) Name() string         { return fmt.Sprintf("remove(%s/)", j.scope) }
func (j *removeJob) Dependencies() []Path { return []Path{j.scope} }

func (j *removeJob) Actions(state *State) ([]*Action, error) {
	switch p := j.scope.(type) {
	case DatasetPath:
		if !state.ContainsDataset(p) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDataset, p)
		}
	case PartitionPath:
		if !state.ContainsPartition(p) {
			return nil, fmt.Errorf("%w: %s", ErrMissingPartition, p)
		}
	}
	return []*Action{{Kind: Remove, Scope: j.scope}}, nil
}

// removeObjectsJob deletes the current version of each named object.
type removeObjectsJob struct {
	paths []ObjectPath
}

// NewRemoveObjects removes the current version of every listed object.
func NewRemoveObjects(paths []ObjectPath) Job {
	return &removeObjectsJob{paths: paths}
}

func (j *removeObjectsJob) Name() string {
	return fmt.Sprintf("remove(%d objects)", len(j.paths))
}

func (j *removeObjectsJob) Dependencies() []Path {
	deps := make([]Path, 0, len(j.paths))
	for _, path := range j.paths {
		deps = append(deps, path.Partition)
	}
	return deps
}

func (j *removeObjectsJob) Actions(state *State) ([]*Action, error) {
	actions := make([]*Action, 0, len(j.paths))
	for _, path := range j.paths {
		current, err := state.CurrentVersion(path)
		if err != nil {
			return nil, err
		}
		actions = append(actions, &Action{Kind: Remove, Scope: path, Version: current})
	}
	return actions, nil
}

// -----------------------------------------------------------------------------
// Transforming verbs
// -----------------------------------------------------------------------------

// sampleJob writes a sampled copy of every source object under the target
// dataset.
type sampleJob struct {
	source  DatasetPath
	target  DatasetPath
	percent float64
}

// NewSample samples percent% of every object of the source dataset into the
// same layout under the target dataset.
func NewSample(source, target DatasetPath, percent float64) Job {
	return &sampleJob{source: source, target: target, percent: percent}
}

func (j *sampleJob) Name() string {
	return fmt.Sprintf("sample(%s -> %s, %.1f%%)", j.source, j.target, j.percent)
}

func (j *sampleJob) Dependencies() []Path {
	return []Path{j.source, j.target}
}

func (j *sampleJob) Actions(state *State) ([]*Action, error) {
	if j.percent <= 0 || j.percent > 100 {
		return nil, fmt.Errorf("%w: sample percentage %.2f outside (0, 100]", ErrInvalidArgument, j.percent)
	}
	pairs, err := datasetPairs(state, j.source, j.target)
	if err != nil {
		return nil, err
	}

	actions := make([]*Action, 0, len(pairs))
	for _, pair := range pairs {
		current, err := state.CurrentVersion(pair.source)
		if err != nil {
			return nil, err
		}
		actions = append(actions, &Action{
			Kind:      Create,
			Scope:     pair.target,
			Version:   state.NextVersion(pair.target),
			Sources:   []ObjectVersion{{Path: pair.source, Version: current}},
			Transform: NewSampleTransform(pair.source.Format(), j.percent),
		})
	}
	return actions, nil
}

// repartitionJob rewrites a partition's objects into a fixed number of
// evenly sized objects.
type repartitionJob struct {
	partition PartitionPath
	count     int
}

// NewRepartition combines every object of the partition and rewrites the
// records into count objects, removing the originals.
func NewRepartition(partition PartitionPath, count int) Job {
	return &repartitionJob{partition: partition, count: count}
}

func (j *repartitionJob) Name() string {
	return fmt.Sprintf("repartition(%s, %d)", j.partition, j.count)
}

func (j *repartitionJob) Dependencies() []Path {
	return []Path{j.partition}
}

func (j *repartitionJob) Actions(state *State) ([]*Action, error) {
	if j.count < 1 {
		return nil, fmt.Errorf("%w: repartition count %d < 1", ErrInvalidArgument, j.count)
	}
	objects, err := state.Objects(j.partition)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}

	format := objects[0].Format()
	sources := make([]ObjectVersion, len(objects))
	for i, object := range objects {
		current, err := state.CurrentVersion(object)
		if err != nil {
			return nil, err
		}
		sources[i] = ObjectVersion{Path: object, Version: current}
	}

	var actions []*Action
	for i := 0; i < j.count; i++ {
		target := j.partition.Object(fmt.Sprintf("part-%05d.%s", i, format))
		actions = append(actions, &Action{
			Kind:      Create,
			Scope:     target,
			Version:   state.NextVersion(target),
			Sources:   sources,
			Transform: NewRepartitionTransform(format, i, j.count),
		})
	}
	for _, source := range sources {
		actions = append(actions, &Action{Kind: Remove, Scope: source.Path, Version: source.Version})
	}
	return actions, nil
}

// compressJob rewrites each object of a partition as a new compressed
// version of the same object.
type compressJob struct {
	partition PartitionPath
	codec     string
}

// NewCompress writes a compressed new version of every object in the
// partition. Older versions stay addressable until removed.
func NewCompress(partition PartitionPath, codec string) Job {
	return &compressJob{partition: partition, codec: codec}
}

func (j *compressJob) Name() string {
	return fmt.Sprintf("compress(%s, %s)", j.partition, j.codec)
}

func (j *compressJob) Dependencies() []Path {
	return []Path{j.partition}
}

func (j *compressJob) Actions(state *State) ([]*Action, error) {
	transform, err := NewCompressTransform(j.codec)
	if err != nil {
		return nil, err
	}
	objects, err := state.Objects(j.partition)
	if err != nil {
		return nil, err
	}

	actions := make([]*Action, 0, len(objects))
	for _, object := range objects {
		current, err := state.CurrentVersion(object)
		if err != nil {
			return nil, err
		}
		actions = append(actions, &Action{
			Kind:      Create,
			Scope:     object,
			Version:   state.NextVersion(object),
			Sources:   []ObjectVersion{{Path: object, Version: current}},
			Transform: transform,
		})
	}
	return actions, nil
}

// generateJob writes a synthetic object from a generator descriptor.
type generateJob struct {
	target ObjectPath
	spec   GeneratorSpec
}

// NewGenerate writes a synthetic object at the target path from the given
// generator descriptor.
func NewGenerate(target ObjectPath, spec GeneratorSpec) Job {
	return &generateJob{target: target, spec: spec}
}

func (j *generateJob) Name() string {
	return fmt.Sprintf("generate(%s, %d rows)", j.target, j.spec.Rows)
}

func (j *generateJob) Dependencies() []Path {
	return []Path{j.target.Partition}
}

func (j *generateJob) Actions(state *State) ([]*Action, error) {
	if j.spec.Rows < 0 {
		return nil, fmt.Errorf("%w: generate row count %d < 0", ErrInvalidArgument, j.spec.Rows)
	}
	if len(j.spec.Fields) == 0 {
		return nil, fmt.Errorf("%w: generate needs at least one field", ErrInvalidArgument)
	}
	return []*Action{{
		Kind:      Create,
		Scope:     j.target,
		Version:   state.NextVersion(j.target),
		Transform: NewGenerateTransform(j.spec),
	}}, nil
}
