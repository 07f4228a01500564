package filter

import "fmt"

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "owner = ? AND key_id = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// SQL translates conditions to a parameterized WHERE fragment using the
// provided field-to-column mapping.
func SQL(conds []Condition, columns map[string]string) (SQLCondition, error) {
	var out SQLCondition
	for _, cond := range conds {
		column, ok := columns[cond.Field]
		if !ok {
			return SQLCondition{}, fmt.Errorf("unknown field: %s", cond.Field)
		}
		value := cond.Value
		// SQLite stores booleans as integers.
		if b, ok := value.(bool); ok {
			if b {
				value = int64(1)
			} else {
				value = int64(0)
			}
		}
		if out.Clause != "" {
			out.Clause += " AND "
		}
		out.Clause += fmt.Sprintf("%s %s ?", column, cond.Op)
		out.Params = append(out.Params, value)
	}
	return out, nil
}

// Match reports whether a record satisfies every condition. The get callback
// returns the record's value for a field; string, bool, int64, and uint64
// values are supported.
func Match(conds []Condition, get func(field string) (any, bool)) bool {
	for _, cond := range conds {
		have, ok := get(cond.Field)
		if !ok {
			return false
		}
		if !matchOne(cond, have) {
			return false
		}
	}
	return true
}

func matchOne(cond Condition, have any) bool {
	switch want := cond.Value.(type) {
	case string:
		value, ok := have.(string)
		if !ok {
			return false
		}
		return compareStrings(value, want, cond.Op)
	case bool:
		value, ok := have.(bool)
		if !ok {
			return false
		}
		switch cond.Op {
		case OpEqual:
			return value == want
		case OpNotEqual:
			return value != want
		default:
			return false
		}
	case int64:
		value, ok := toInt64(have)
		if !ok {
			return false
		}
		return compareInts(value, want, cond.Op)
	case uint64:
		value, ok := toInt64(have)
		if !ok {
			return false
		}
		return compareInts(value, int64(want), cond.Op)
	default:
		return false
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func compareStrings(have, want string, op Op) bool {
	switch op {
	case OpEqual:
		return have == want
	case OpNotEqual:
		return have != want
	case OpLess:
		return have < want
	case OpLessEqual:
		return have <= want
	case OpGreater:
		return have > want
	case OpGreaterEqual:
		return have >= want
	default:
		return false
	}
}

func compareInts(have, want int64, op Op) bool {
	switch op {
	case OpEqual:
		return have == want
	case OpNotEqual:
		return have != want
	case OpLess:
		return have < want
	case OpLessEqual:
		return have <= want
	case OpGreater:
		return have > want
	case OpGreaterEqual:
		return have >= want
	default:
		return false
	}
}
