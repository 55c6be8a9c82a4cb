package sync

import (
	"context"
	"fmt"

	"github.com/klxm/synch/internal/store"
)

// DuplicateGroup is a set of records of one kind sharing a name. Keep is
// the record with the lowest id.
type DuplicateGroup struct {
	Kind       string
	Name       string
	Keep       *store.Record
	Duplicates []*store.Record
}

// FindDuplicates groups records by exact, non-empty name. Groups are
// returned per kind in the order their first record appears.
func FindDuplicates(ctx context.Context, st store.RecordStore, kinds []Kind) ([]DuplicateGroup, error) {
	var groups []DuplicateGroup
	for _, kind := range kinds {
		records, err := st.ListAll(ctx, kind.Record)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind.Name, err)
		}

		byName := make(map[string][]*store.Record)
		var order []string
		for _, rec := range records {
			if rec.Name == "" {
				continue
			}
			if _, seen := byName[rec.Name]; !seen {
				order = append(order, rec.Name)
			}
			byName[rec.Name] = append(byName[rec.Name], rec)
		}

		for _, name := range order {
			recs := byName[name]
			if len(recs) < 2 {
				continue
			}
			groups = append(groups, DuplicateGroup{
				Kind:       kind.Name,
				Name:       name,
				Keep:       recs[0],
				Duplicates: recs[1:],
			})
		}
	}
	return groups, nil
}
