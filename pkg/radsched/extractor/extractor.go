// Package extractor turns a Solver Driver result into the snapshot's
// final Assignment list: canonical ordering, de-duplication, canonical
// IDs, and preservation of every manual pin untouched (P4).
package extractor

import (
	"sort"
	"strconv"

	"github.com/radsched/radsched/pkg/model"
)

// Extract merges manual pins with the solver's chosen free assignments
// into one canonically ordered, de-duplicated list. Manual assignments
// always win a (rowID, dateISO, clinicianID, seq) collision, since the solver
// is never supposed to produce one but a defensive union still needs a
// tie-break rule.
func Extract(manual, solved []model.Assignment) []model.Assignment {
	byKey := make(map[string]model.Assignment, len(manual)+len(solved))
	order := make([]string, 0, len(manual)+len(solved))

	put := func(a model.Assignment) {
		key := a.RowID + "|" + a.DateISO + "|" + a.ClinicianID + "|" + strconv.Itoa(a.Seq)
		if existing, ok := byKey[key]; ok && existing.Manual && !a.Manual {
			return
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = a.WithCanonicalID()
	}

	for _, a := range manual {
		put(a)
	}
	for _, a := range solved {
		put(a)
	}

	out := make([]model.Assignment, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DateISO != out[j].DateISO {
			return out[i].DateISO < out[j].DateISO
		}
		if out[i].RowID != out[j].RowID {
			return out[i].RowID < out[j].RowID
		}
		return out[i].ClinicianID < out[j].ClinicianID
	})

	return out
}
