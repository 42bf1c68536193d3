package docstore

import (
	"github.com/dmitrijs2005/bookly/internal/common"
)

// Op is a field update operation.
type Op string

const (
	// OpSet replaces the field value.
	OpSet Op = "set"
	// OpArrayRemove removes every array element equal to Value.
	OpArrayRemove Op = "array_remove"
	// OpArrayUnion appends Value unless an equal element is present.
	OpArrayUnion Op = "array_union"
	// OpDelete removes the field.
	OpDelete Op = "delete"
)

// FieldUpdate is one step of a Patch.
type FieldUpdate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value,omitempty"`
}

// Patch is an ordered list of field updates applied to one document as a
// single write.
type Patch []FieldUpdate

func Set(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpSet, Value: value}
}

func ArrayRemove(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpArrayRemove, Value: value}
}

func ArrayUnion(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpArrayUnion, Value: value}
}

func Delete(field string) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpDelete}
}

// Validate checks that every update names a field and a known op.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return common.Validation("Nothing to update.")
	}
	for _, u := range p {
		if u.Field == "" {
			return common.Validation("Field name is required.")
		}
		switch u.Op {
		case OpSet, OpArrayRemove, OpArrayUnion, OpDelete:
		default:
			return common.Validation("Unsupported update operation.")
		}
	}
	return nil
}

// Apply returns a copy of fields with p applied. An array operation on a
// missing or non-array field treats the field as an empty array.
func (p Patch) Apply(fields Fields) (Fields, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := CloneFields(fields)
	if out == nil {
		out = Fields{}
	}

	for _, u := range p {
		value, err := Normalize(u.Value)
		if err != nil {
			return nil, common.Wrap(common.ErrValidation, "Invalid field value.", err)
		}

		switch u.Op {
		case OpSet:
			out[u.Field] = value
		case OpDelete:
			delete(out, u.Field)
		case OpArrayRemove:
			arr, _ := out[u.Field].([]any)
			kept := make([]any, 0, len(arr))
			for _, e := range arr {
				if !Equal(e, value) {
					kept = append(kept, e)
				}
			}
			out[u.Field] = kept
		case OpArrayUnion:
			arr, _ := out[u.Field].([]any)
			found := false
			for _, e := range arr {
				if Equal(e, value) {
					found = true
					break
				}
			}
			if !found {
				arr = append(append([]any(nil), arr...), value)
			}
			out[u.Field] = arr
		}
	}

	return out, nil
}
