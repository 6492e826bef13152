// Package decoder turns raw event logs into named, typed event fields
package decoder

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/cryo-go/source"
)

var (
	ErrTopicMismatch = errors.New("log topic0 does not match event")
	errTopicCount    = errors.New("indexed argument count does not match topics")
)

// LogDecoder decodes the logs of a single event type
type LogDecoder struct {
	event      abi.Event
	indexed    abi.Arguments
	nonIndexed abi.Arguments
	fieldNames []string
}

func NewLogDecoder(signature string) (*LogDecoder, error) {
	event, err := ParseEventSignature(signature)
	if err != nil {
		return nil, err
	}
	return newLogDecoder(event), nil
}

func NewLogDecoderFromABI(r io.Reader, eventName string) (*LogDecoder, error) {
	event, err := ParseEventABI(r, eventName)
	if err != nil {
		return nil, err
	}
	return newLogDecoder(event), nil
}

func newLogDecoder(event abi.Event) *LogDecoder {
	d := &LogDecoder{
		event:      event,
		nonIndexed: event.Inputs.NonIndexed(),
		fieldNames: make([]string, len(event.Inputs)),
	}
	for i, in := range event.Inputs {
		if in.Indexed {
			d.indexed = append(d.indexed, in)
		}
		d.fieldNames[i] = event.RawName + "." + in.Name
	}
	return d
}

// EventID is the keccak256 hash of the canonical signature, i.e. topic0
func (d *LogDecoder) EventID() common.Hash {
	return d.event.ID
}

func (d *LogDecoder) Name() string {
	return d.event.RawName
}

// Signature returns the canonical signature, e.g. Transfer(address,address,uint256)
func (d *LogDecoder) Signature() string {
	return d.event.Sig
}

// FieldNames lists the dynamic column names in argument order
func (d *LogDecoder) FieldNames() []string {
	return slices.Clone(d.fieldNames)
}

// Decode decodes every log of the batch emitted by this event. Logs with a
// different topic0, or that fail to decode, contribute nothing. Each value
// records the index of its log in the batch. The input is not modified.
func (d *LogDecoder) Decode(logs []source.RawLog) *Fields {
	fields := NewFields()
	for i := range logs {
		values, err := d.DecodeLog(&logs[i])
		if err != nil {
			continue
		}
		for j, v := range values {
			fields.Append(d.fieldNames[j], i, v)
		}
	}
	return fields
}

// DecodeLog returns the values of one log, in argument order
func (d *LogDecoder) DecodeLog(log *source.RawLog) ([]Value, error) {
	topic0, ok := log.Topic(0)
	if !ok || topic0 != d.event.ID {
		return nil, ErrTopicMismatch
	}
	if len(log.Topics)-1 != len(d.indexed) {
		return nil, fmt.Errorf("%w: %d indexed, %d topics", errTopicCount, len(d.indexed), len(log.Topics)-1)
	}

	unpacked, err := d.nonIndexed.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("Unpack: %w", err)
	}
	indexed := make(map[string]interface{}, len(d.indexed))
	if err := abi.ParseTopicsIntoMap(indexed, d.indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("ParseTopicsIntoMap: %w", err)
	}

	values := make([]Value, 0, len(d.event.Inputs))
	n := 0
	for _, in := range d.event.Inputs {
		if in.Indexed {
			values = append(values, newValue(indexed[in.Name]))
			continue
		}
		values = append(values, newValue(unpacked[n]))
		n++
	}
	return values, nil
}

// Fields is an insertion ordered map of field name to decoded values. Every
// value carries the row it belongs to.
type Fields struct {
	keys   []string
	values map[string][]Value
	rows   map[string][]int
}

func NewFields() *Fields {
	return &Fields{
		values: make(map[string][]Value),
		rows:   make(map[string][]int),
	}
}

// Keys returns the field names in first-seen order
func (f *Fields) Keys() []string {
	return slices.Clone(f.keys)
}

func (f *Fields) Len() int {
	return len(f.keys)
}

func (f *Fields) Get(key string) ([]Value, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Rows returns the row of every value of key, parallel to Get
func (f *Fields) Rows(key string) []int {
	return f.rows[key]
}

func (f *Fields) Append(key string, row int, v Value) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = append(f.values[key], v)
	f.rows[key] = append(f.rows[key], row)
}

// Extend appends all fields of other, creating missing keys in other's order.
// Rows are kept as they are.
func (f *Fields) Extend(other *Fields) {
	f.ExtendRows(other, nil)
}

// ExtendRows is Extend with the rows of other translated through rowOf.
// Values whose row maps to a negative index are dropped. A nil rowOf keeps
// rows unchanged.
func (f *Fields) ExtendRows(other *Fields, rowOf []int) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		rows := other.rows[k]
		for i, v := range other.values[k] {
			row := rows[i]
			if rowOf != nil {
				if row < 0 || row >= len(rowOf) || rowOf[row] < 0 {
					continue
				}
				row = rowOf[row]
			}
			f.Append(k, row, v)
		}
	}
}
