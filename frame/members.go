package frame

import (
	"maps"
	"slices"
)

var (
	columnProperties = []string{"dtype", "shape", "size", "empty", "index", "name", "values", "str", "dt"}
	tableProperties  = []string{"shape", "columns", "empty", "size", "index", "dtypes"}
)

func members[M ~map[string]V, V any](methods M, properties ...string) []string {
	names := slices.AppendSeq(slices.Clone(properties), maps.Keys(methods))
	slices.Sort(names)

	return slices.Compact(names)
}

// Members returns the sorted method and property names of c.
func (c *Column) Members() []string { return members(columnMethods, columnProperties...) }

// Members returns the sorted method and property names of t, including its
// column names.
func (t *Table) Members() []string {
	return members(tableMethods, append(slices.Clone(tableProperties), t.names...)...)
}

// Members returns the sorted method names of the str accessor.
func (a *strAccessor) Members() []string { return members(strMethods) }

// Members returns the sorted method and property names of the dt accessor.
func (a *dtAccessor) Members() []string {
	return members(dtMethods, append(slices.Collect(maps.Keys(dtFields)), "date")...)
}
