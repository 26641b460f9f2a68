package osm

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

// Kind enumerates the primitive action kinds.
type Kind int

// Primitive action kinds.
const (
	Read Kind = iota
	Create
	Update
	Remove
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Create:
		return "create"
	case Update:
		return "update"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is an atomic storage primitive. Version-scoped actions target one
// object at one version. A Remove may instead carry a partition or dataset
// scope: a structural delete of everything underneath.
//
// Create and Update may name source object versions their payload derives
// from. With a nil Transform the payload is a plain copy of the single
// source; otherwise the Transform produces the payload from the sources.
// Actions are owned by the plan that generated them and never shared.
type Action struct {
	Kind    Kind
	Scope   Path
	Version Version

	Sources   []ObjectVersion
	Transform Transform

	// seq records emission order inside one batch; the tie-break for
	// conflicting non-remove pairs.
	seq int
}

// Object returns the target object path for version-scoped actions.
func (a *Action) Object() (ObjectPath, bool) {
	o, ok := a.Scope.(ObjectPath)
	return o, ok
}

// Structural reports whether this is a whole-object-tree delete, scoped to a
// partition, dataset, or the root rather than one version.
func (a *Action) Structural() bool {
	if a.Kind != Remove {
		return false
	}
	_, object := a.Scope.(ObjectPath)
	return !object
}

// Key renders a short stable identifier for reports and tests, for example
// "create(b/ds/date=2020-01/a.jsonl@v2)" or "remove(b/ds/date=2020-01/)".
func (a *Action) Key() string {
	if a.Structural() {
		return fmt.Sprintf("%s(%s/)", a.Kind, a.Scope)
	}
	var src string
	if len(a.Sources) > 0 {
		names := make([]string, len(a.Sources))
		for i, s := range a.Sources {
			names[i] = s.String()
		}
		src = " <- " + strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s(%s@%s%s)", a.Kind, a.Scope, a.Version, src)
}

// -----------------------------------------------------------------------------
// Effects and the conflict relation
// -----------------------------------------------------------------------------

// effect is the access footprint of an action on one scope: the triple used
// for conflict comparison and nothing else.
type effect struct {
	scope      Path
	version    Version
	kind       Kind
	structural bool
}

// effects returns the action's full footprint: its own (scope, version,
// kind) plus a read effect per source version.
func (a *Action) effects() []effect {
	out := make([]effect, 0, 1+len(a.Sources))
	out = append(out, effect{
		scope:      a.Scope,
		version:    a.Version,
		kind:       a.Kind,
		structural: a.Structural(),
	})
	for _, s := range a.Sources {
		out = append(out, effect{scope: s.Path, version: s.Version, kind: Read})
	}
	return out
}

// conflictingEffects reports whether two effects require ordering:
//
//   - same object, same version, at least one writer;
//   - a structural delete against anything under its scope.
//
// Different versions of one object never conflict, which lets old-version
// reads overlap new-version writes.
func conflictingEffects(a, b effect) bool {
	if a.structural || b.structural {
		return overlaps(a.scope, b.scope)
	}
	ao, aok := a.scope.(ObjectPath)
	bo, bok := b.scope.(ObjectPath)
	if !aok || !bok || ao != bo || a.version != b.version {
		return false
	}
	return a.kind != Read || b.kind != Read
}

// Conflicts reports whether two actions require ordering under the effect
// model.
func Conflicts(a, b *Action) bool {
	for _, ea := range a.effects() {
		for _, eb := range b.effects() {
			if conflictingEffects(ea, eb) {
				return true
			}
		}
	}
	return false
}

// precedes reports, for a conflicting pair, whether a must execute strictly
// before b. A remove is ordered after any conflicting non-remove action;
// otherwise emission order is the tie-break.
func precedes(a, b *Action) bool {
	if a.Kind == Remove && b.Kind != Remove {
		return false
	}
	if b.Kind == Remove && a.Kind != Remove {
		return true
	}
	return a.seq < b.seq
}
