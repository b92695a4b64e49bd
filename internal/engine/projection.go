package engine

import (
	"fmt"
	"strings"

	"config-watch/internal/store"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = Filter(store.StatusActive)
	FilterSlow     Filter = Filter(store.StatusSlow)
	FilterDead     Filter = Filter(store.StatusDead)
	FilterUntested Filter = Filter(store.StatusUntested)
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterActive, FilterSlow, FilterDead, FilterUntested:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// Project returns the records visible under filter, in store order.
func Project(records []store.ConfigRecord, filter Filter) []store.ConfigRecord {
	out := make([]store.ConfigRecord, 0, len(records))
	for _, rec := range records {
		if filter == FilterAll || Filter(rec.Status) == filter {
			out = append(out, rec)
		}
	}
	return out
}
