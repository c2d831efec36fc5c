package query

import "filecabinet/pkg/common"

// Finder is the lookup half of a store.
type Finder interface {
	List() []common.Record
	FindBy(field common.Field, key string) []common.Record
}

// Execute evaluates w against st. Each term is one FindBy; results are
// intersected (and) or merged (or) and returned in store order.
func Execute(st Finder, w *Where) []common.Record {
	if len(w.Terms) == 0 {
		return nil
	}

	matched := map[int32]bool{}
	for i, t := range w.Terms {
		hits := map[int32]bool{}
		for _, r := range st.FindBy(t.Field, t.Value) {
			hits[r.ID] = true
		}
		switch {
		case i == 0:
			matched = hits
		case w.Join == Or:
			for id := range hits {
				matched[id] = true
			}
		default:
			for id := range matched {
				if !hits[id] {
					delete(matched, id)
				}
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	var out []common.Record
	for _, r := range st.List() {
		if w.Limit >= 0 && len(out) == w.Limit {
			break
		}
		if matched[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
