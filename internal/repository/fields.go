package repository

// Client payloads are persisted only after being filtered down to an
// explicit allow-list, applied recursively into nested objects and
// arrays of objects. Unknown keys never reach the store.

type fieldSpec map[string]interface{}

var personFields = fieldSpec{
	"first":   true,
	"last":    true,
	"email":   true,
	"phone":   true,
	"address": true,
}

var orderFields = fieldSpec{
	"payment_id":    true,
	"total":         true,
	"fees":          true,
	"donation":      true,
	"deposit":       true,
	"is_test_order": true,
	"environment":   true,
	"people":        personFields,
}

// FilterOrderFields returns a copy of payload containing only allowed
// order fields.
func FilterOrderFields(payload map[string]interface{}) map[string]interface{} {
	return filterFields(payload, orderFields)
}

func filterFields(in map[string]interface{}, allowed fieldSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		spec, ok := allowed[k]
		if !ok {
			continue
		}

		nested, isNested := spec.(fieldSpec)
		if !isNested {
			out[k] = v
			continue
		}

		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = filterFields(val, nested)
		case []interface{}:
			filtered := make([]interface{}, 0, len(val))
			for _, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					filtered = append(filtered, filterFields(m, nested))
				}
			}
			out[k] = filtered
		}
		// A scalar where an object is allowed is dropped.
	}
	return out
}

// PeopleCountOf reads the headcount off a raw order payload.
func PeopleCountOf(payload map[string]interface{}) int {
	people, ok := payload["people"].([]interface{})
	if !ok {
		return 0
	}
	return len(people)
}
