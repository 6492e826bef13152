package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flashbots/cryo-go/decoder"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownSortKey  = errors.New("sort column is not selected")
	ErrSchemaNotFound  = errors.New("schema not provided for datatype")
	errEmptyColumnList = errors.New("no columns selected")
)

// Descriptor is implemented by every dataset. All methods are pure.
type Descriptor interface {
	Datatype() Datatype
	Name() string
	// Columns lists every column the dataset can produce, in output order
	Columns() []string
	ColumnTypes() map[string]ColumnType
	DefaultColumns() []string
	DefaultSort() []string
}

// ColumnAliaser is implemented by datasets that accept alternative names for
// some of their columns
type ColumnAliaser interface {
	ColumnAliases() map[string]string
}

// canonicalColumns replaces aliased column names by the dataset's names
func canonicalColumns(d Descriptor, cols []string) []string {
	a, ok := d.(ColumnAliaser)
	if !ok || len(cols) == 0 {
		return cols
	}
	aliases := a.ColumnAliases()
	out := make([]string, len(cols))
	for i, c := range cols {
		if name, ok := aliases[c]; ok {
			c = name
		}
		out[i] = c
	}
	return out
}

// Table is the schema of one output table. It is immutable after Build and is
// shared read-only between all partitions of a job.
type Table struct {
	datatype Datatype
	columns  []string
	present  map[string]struct{}
	types    map[string]ColumnType
	sort     []string

	// LogDecoder produces the dynamic event columns, nil if not requested
	LogDecoder *decoder.LogDecoder
}

type TableOpts struct {
	// Columns replaces the default column set ("all" selects every column)
	Columns []string
	// IncludeColumns are added to the selected set ("all" adds every column)
	IncludeColumns []string
	// ExcludeColumns are removed from the selected set
	ExcludeColumns []string
	// Sort overrides the default sort. A single "none" disables sorting.
	Sort []string

	LogDecoder *decoder.LogDecoder
}

// Build resolves the requested columns of a dataset into a Table
func Build(d Descriptor, opts TableOpts) (*Table, error) {
	types := d.ColumnTypes()
	selected := make(map[string]struct{})

	add := func(cols []string) error {
		for _, c := range cols {
			if c == "all" {
				for _, col := range d.Columns() {
					selected[col] = struct{}{}
				}
				continue
			}
			if _, ok := types[c]; !ok {
				return fmt.Errorf("%w: %s (datatype %s)", ErrUnknownColumn, c, d.Name())
			}
			selected[c] = struct{}{}
		}
		return nil
	}

	base := d.DefaultColumns()
	if len(opts.Columns) > 0 {
		base = canonicalColumns(d, opts.Columns)
	}
	if err := add(base); err != nil {
		return nil, err
	}
	if err := add(canonicalColumns(d, opts.IncludeColumns)); err != nil {
		return nil, err
	}
	for _, c := range canonicalColumns(d, opts.ExcludeColumns) {
		if _, ok := types[c]; !ok {
			return nil, fmt.Errorf("%w: %s (datatype %s)", ErrUnknownColumn, c, d.Name())
		}
		delete(selected, c)
	}
	if len(selected) == 0 && opts.LogDecoder == nil {
		return nil, errEmptyColumnList
	}

	// keep canonical dataset order
	columns := make([]string, 0, len(selected))
	for _, c := range d.Columns() {
		if _, ok := selected[c]; ok {
			columns = append(columns, c)
		}
	}

	sort, err := resolveSort(d, canonicalColumns(d, opts.Sort), selected)
	if err != nil {
		return nil, err
	}

	return &Table{
		datatype:   d.Datatype(),
		columns:    columns,
		present:    selected,
		types:      types,
		sort:       sort,
		LogDecoder: opts.LogDecoder,
	}, nil
}

func resolveSort(d Descriptor, requested []string, selected map[string]struct{}) ([]string, error) {
	if len(requested) == 1 && requested[0] == "none" {
		return nil, nil
	}

	if len(requested) > 0 {
		for _, c := range requested {
			if _, ok := selected[c]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSortKey, c)
			}
		}
		return slices.Clone(requested), nil
	}

	// default sort, restricted to what was selected
	sort := make([]string, 0, len(d.DefaultSort()))
	for _, c := range d.DefaultSort() {
		if _, ok := selected[c]; ok {
			sort = append(sort, c)
		}
	}
	return sort, nil
}

func (t *Table) Datatype() Datatype {
	return t.datatype
}

// Has reports whether a column was requested
func (t *Table) Has(column string) bool {
	_, ok := t.present[column]
	return ok
}

// Columns returns the selected columns in output order
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

func (t *Table) ColumnType(column string) (ColumnType, bool) {
	ct, ok := t.types[column]
	return ct, ok
}

func (t *Table) SortColumns() []string {
	return slices.Clone(t.sort)
}

// Schemas maps every datatype of a query to its table
type Schemas map[Datatype]*Table

func (s Schemas) Get(dt Datatype) (*Table, error) {
	t, ok := s[dt]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, dt)
	}
	return t, nil
}
