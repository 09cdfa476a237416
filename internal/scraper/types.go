package scraper

import (
	"bytes"
	"encoding/json"
)

// Sentinel подставляется вместо любого не найденного значения поля
const Sentinel = "N/A"

const (
	KindText = "text"
	KindURL  = "url"
)

type Field struct {
	Name  string
	Value string
}

// Record: упорядоченный набор полей одной карточки. После создания не меняется.
type Record struct {
	fields []Field
}

func NewRecord(fields []Field) Record {
	copied := make([]Field, len(fields))
	copy(copied, fields)
	return Record{fields: copied}
}

func (r Record) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value возвращает значение поля или Sentinel, если такого поля нет
func (r Record) Value(name string) string {
	if v, ok := r.Get(name); ok {
		return v
	}
	return Sentinel
}

func (r Record) Fields() []Field {
	copied := make([]Field, len(r.fields))
	copy(copied, r.fields)
	return copied
}

func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

func (r Record) Len() int {
	return len(r.fields)
}

// MarshalJSON сохраняет порядок полей
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldSpec описывает, как достать одно поле из контейнера карточки.
// Пустой Selectors: значение берётся с самого контейнера.
type FieldSpec struct {
	Name      string   `yaml:"name"`
	Selectors []string `yaml:"selectors"`
	Attr      string   `yaml:"attr"`
	Kind      string   `yaml:"kind"`
}

type FieldSet struct {
	Fields []FieldSpec `yaml:"fields"`
}
