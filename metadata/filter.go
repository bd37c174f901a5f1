package metadata

// Operator identifies a filter comparison.
type Operator uint8

const (
	// OpEqual matches values equal to the filter value.
	OpEqual Operator = iota
	// OpNotEqual matches values not equal to the filter value.
	OpNotEqual
	// OpGreaterThan matches values strictly greater than the filter value.
	OpGreaterThan
	// OpGreaterEqual matches values greater than or equal to the filter value.
	OpGreaterEqual
	// OpLessThan matches values strictly less than the filter value.
	OpLessThan
	// OpLessEqual matches values less than or equal to the filter value.
	OpLessEqual
)

// Filter is a single metadata predicate.
type Filter struct {
	Key      string
	Operator Operator
	Value    Value
}

// Eq builds an equality filter.
func Eq(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpEqual, Value: ValueOf(value)}
}

// Ne builds a not-equal filter.
func Ne(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpNotEqual, Value: ValueOf(value)}
}

// Gt builds a greater-than filter.
func Gt(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpGreaterThan, Value: ValueOf(value)}
}

// Gte builds a greater-or-equal filter.
func Gte(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpGreaterEqual, Value: ValueOf(value)}
}

// Lt builds a less-than filter.
func Lt(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpLessThan, Value: ValueOf(value)}
}

// Lte builds a less-or-equal filter.
func Lte(key string, value any) *Filter {
	return &Filter{Key: key, Operator: OpLessEqual, Value: ValueOf(value)}
}

// Matches checks if the provided metadata matches this filter.
// A missing key never matches, regardless of operator.
func (f *Filter) Matches(doc Document) bool {
	value, exists := doc[f.Key]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return value.Equal(f.Value)
	case OpNotEqual:
		return !value.Equal(f.Value)
	case OpGreaterThan:
		return f.Value.Less(value)
	case OpGreaterEqual:
		return f.Value.Less(value) || value.Equal(f.Value)
	case OpLessThan:
		return value.Less(f.Value)
	case OpLessEqual:
		return value.Less(f.Value) || value.Equal(f.Value)
	default:
		return false
	}
}

// FilterSet is a conjunction of filters: all must match.
type FilterSet struct {
	Filters []*Filter
}

// NewFilterSet creates a FilterSet from the given filters.
func NewFilterSet(filters ...*Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Matches checks if the provided metadata matches all filters in the set.
func (fs *FilterSet) Matches(doc Document) bool {
	if fs == nil {
		return true
	}

	for _, filter := range fs.Filters {
		if !filter.Matches(doc) {
			return false
		}
	}

	return true
}

// indexable reports whether every filter in the set can be answered from the
// equality inverted index.
func (fs *FilterSet) indexable() bool {
	if fs == nil || len(fs.Filters) == 0 {
		return false
	}

	for _, filter := range fs.Filters {
		if filter.Operator != OpEqual {
			return false
		}
	}

	return true
}
