package chat

// window remembers the most recent comment IDs of one activity.
type window struct {
	ids   map[string]struct{}
	order []string
	next  int
}

func newWindow(size int) *window {
	return &window{ids: make(map[string]struct{}, size), order: make([]string, 0, size)}
}

// add records id and reports false when it was already present.
func (w *window) add(id string) bool {
	if _, seen := w.ids[id]; seen {
		return false
	}
	if len(w.order) < cap(w.order) {
		w.order = append(w.order, id)
	} else {
		delete(w.ids, w.order[w.next])
		w.order[w.next] = id
		w.next = (w.next + 1) % len(w.order)
	}
	w.ids[id] = struct{}{}
	return true
}
