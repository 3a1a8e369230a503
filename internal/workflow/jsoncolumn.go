package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONColumn is a raw JSON document stored as a single Postgres column.
// It implements driver.Valuer and sql.Scanner so sqlx can read and
// write workflow graphs and step results without an intermediate
// struct.
type JSONColumn json.RawMessage

// Value implements driver.Valuer.
func (j JSONColumn) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONColumn) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	case string:
		*j = JSONColumn(v)
		return nil
	default:
		return fmt.Errorf("workflow: cannot scan %T into JSONColumn", value)
	}
}

// MarshalJSON passes the raw document through unchanged.
func (j JSONColumn) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw document unchanged.
func (j *JSONColumn) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
