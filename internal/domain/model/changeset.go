package model

// ChangeType classifies a single field difference between two snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// FieldChange records one top-level field that differs between snapshots.
// Old is nil when the field was added; New is nil when it was removed.
type FieldChange struct {
	Field string
	Old   Value
	New   Value
	Type  ChangeType
}

// ChangeSet is the list of differing fields, ordered by field name.
type ChangeSet []FieldChange

// Get returns the change recorded for field.
func (cs ChangeSet) Get(field string) (FieldChange, bool) {
	for _, c := range cs {
		if c.Field == field {
			return c, true
		}
	}
	return FieldChange{}, false
}

// Fields returns the changed field names in order.
func (cs ChangeSet) Fields() []string {
	fields := make([]string, 0, len(cs))
	for _, c := range cs {
		fields = append(fields, c.Field)
	}
	return fields
}
