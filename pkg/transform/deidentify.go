// pkg/transform/deidentify.go
package transform

import "github.com/mobilesensing/device-ingress/pkg/model"

// Placeholder values written over sensitive columns. Overwriting rather
// than dropping keeps the column shape identical across tables that do and
// do not carry these fields natively.
const (
	PlaceholderEmail = "redacted@redacted.invalid"
	PlaceholderText  = "REDACTED"
	PlaceholderInt   = int64(0)
)

// sensitiveColumns are overwritten in place wherever they survive to this
// point. Most special-cased modifiers drop them first; this pass catches
// every other table.
var sensitiveColumns = []string{"email", "group", "name", "participant_id"}

// Deidentify overwrites sensitive column values with fixed placeholders.
// Columns absent from the batch are left absent. Idempotent.
func Deidentify(b *model.Batch) {
	for _, name := range sensitiveColumns {
		c := b.Column(name)
		if c == nil {
			continue
		}

		var placeholder any
		switch {
		case c.Kind == model.KindString && name == "email":
			placeholder = PlaceholderEmail
		case c.Kind == model.KindString:
			placeholder = PlaceholderText
		case c.Kind == model.KindFloat64:
			placeholder = float64(PlaceholderInt)
		default:
			c.Kind = model.KindInt64
			placeholder = PlaceholderInt
		}

		for i := range c.Values {
			c.Values[i] = placeholder
		}
	}
}
