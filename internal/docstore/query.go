package docstore

import (
	"sort"
)

// Matches reports whether the record satisfies every filter of the query.
func (q Query) Matches(record Record) bool {
	for _, filter := range q.Filters {
		value, ok := record.Fields[filter.Field]
		if !ok {
			if filter.Value != nil {
				return false
			}
			continue
		}
		if !EqualValues(value, filter.Value) {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits records in memory. Records that compare equal keep
// their input order.
func (q Query) Apply(records []Record) []Record {
	result := make([]Record, 0, len(records))
	for _, record := range records {
		if q.Matches(record) {
			result = append(result, record)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		c := q.compare(result[i], result[j])
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

func (q Query) compare(a Record, b Record) int {
	switch q.OrderBy {
	case "", OrderByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return CompareValues(a.Fields[q.OrderBy], b.Fields[q.OrderBy])
}
