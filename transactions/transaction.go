// Package transactions loads bank transactions from uploaded CSV statements.
package transactions

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one column of a transaction row.
type Field struct {
	Key   string
	Value string
}

// Transaction is one statement row: column name to raw value, in column order.
// No column is required; consumers pick the keys they understand.
type Transaction struct {
	fields []Field
}

// New builds a transaction from fields in the given order. A repeated key
// keeps its first position and its last value.
func New(fields ...Field) Transaction {
	var t Transaction
	for _, f := range fields {
		t.Set(f.Key, f.Value)
	}
	return t
}

// Set replaces the value of key, appending the key if it is new.
func (t *Transaction) Set(key, value string) {
	for i := range t.fields {
		if t.fields[i].Key == key {
			t.fields[i].Value = value
			return
		}
	}
	t.fields = append(t.fields, Field{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (t Transaction) Get(key string) (string, bool) {
	for _, f := range t.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of the columns in order.
func (t Transaction) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

func (t Transaction) Len() int { return len(t.fields) }

// MarshalJSON writes the row as a JSON object keeping column order.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range t.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a manually entered transaction. Strings are kept as is,
// null becomes "", and any other value keeps its compact JSON text.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("transactions: expected a JSON object, got %v", tok)
	}

	t.fields = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("transactions: unexpected key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := rawToString(raw)
		if err != nil {
			return err
		}
		t.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

func rawToString(raw json.RawMessage) (string, error) {
	switch {
	case bytes.Equal(raw, []byte("null")):
		return "", nil
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}
