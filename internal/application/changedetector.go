package application

import (
	"sort"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// DefaultSkipFields are top-level case fields excluded from change detection.
// Orders are republished on every fetch and carry no user-facing change.
var DefaultSkipFields = map[string]bool{"orders": true}

// DetectChanges compares two case snapshots field by field and returns the
// top-level fields whose canonical encodings differ, ordered by field name.
// A nil or non-object snapshot counts as an empty object. Fields named in
// skip are ignored. The result is nil when nothing differs.
func DetectChanges(prev, curr model.Value, skip map[string]bool) model.ChangeSet {
	before := topLevelFields(prev)
	after := topLevelFields(curr)

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		if skip[k] {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var changes model.ChangeSet
	for _, field := range names {
		oldVal, hadOld := before[field]
		newVal, hasNew := after[field]

		if hadOld && hasNew && model.Canonical(oldVal) == model.Canonical(newVal) {
			continue
		}

		change := model.FieldChange{Field: field, Type: model.ChangeModified}
		switch {
		case !hadOld:
			change.Type = model.ChangeAdded
		case !hasNew:
			change.Type = model.ChangeRemoved
		}
		if hadOld {
			change.Old = model.Normalize(oldVal)
		}
		if hasNew {
			change.New = model.Normalize(newVal)
		}
		changes = append(changes, change)
	}

	return changes
}

// topLevelFields maps each top-level key to its value. A JSON null member is
// kept as model.Null so it stays distinct from an absent key.
func topLevelFields(v model.Value) map[string]model.Value {
	obj, ok := model.AsObject(v)
	if !ok {
		return nil
	}

	fields := make(map[string]model.Value, obj.Len())
	for _, m := range obj.Members() {
		val := m.Value
		if val == nil {
			val = model.Null{}
		}
		fields[m.Key] = val
	}
	return fields
}
