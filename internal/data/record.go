package data

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Audit field names. They are stripped by Serialize unless includeBase is set.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var auditFields = []string{FieldID, FieldCreatedAt, FieldUpdatedAt}

// Record is a typed domain object built from a flat field mapping.
type Record interface {
	DType() DType
	// Fields returns the record in wire form, audit fields included.
	Fields() map[string]any
}

// Base carries the audit fields shared by persisted records.
type Base struct {
	ID        int64     `mapstructure:"id"`
	CreatedAt time.Time `mapstructure:"created_at"`
	UpdatedAt time.Time `mapstructure:"updated_at"`
}

func (b Base) putFields(m map[string]any) {
	if b.ID != 0 {
		m[FieldID] = b.ID
	}
	if !b.CreatedAt.IsZero() {
		m[FieldCreatedAt] = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !b.UpdatedAt.IsZero() {
		m[FieldUpdatedAt] = b.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
}

// Serialize returns rec as a flat mapping. Audit fields are included only when includeBase is true.
func Serialize(rec Record, includeBase bool) map[string]any {
	fields := rec.Fields()
	if !includeBase {
		for _, k := range auditFields {
			delete(fields, k)
		}
	}
	return fields
}

// decode maps a loosely typed payload onto out. JSON numbers arrive as float64
// and timestamps as RFC 3339 strings.
func decode(dtype DType, input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return &ValidationError{Record: dtype, Err: err}
	}
	return nil
}

// require fails with a ValidationError naming the first absent or null field.
func require(dtype DType, fields map[string]any, names ...string) error {
	for _, name := range names {
		if v, ok := fields[name]; !ok || v == nil {
			return missingField(dtype, name)
		}
	}
	return nil
}

func copyFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
