package appointment

// Book is the canonical collection, in store order. It is not safe for
// concurrent use; Service guards it.
type Book struct {
	items []Appointment
	index map[string]int
}

// NewBook builds a collection from appts. A repeated id keeps its first
// position and its last value.
func NewBook(appts []Appointment) *Book {
	b := &Book{index: make(map[string]int, len(appts))}
	for _, a := range appts {
		b.Put(a)
	}
	return b
}

func (b *Book) Len() int { return len(b.items) }

// All returns a copy of the collection.
func (b *Book) All() []Appointment {
	out := make([]Appointment, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Book) Get(id string) (Appointment, bool) {
	i, ok := b.index[id]
	if !ok {
		return Appointment{}, false
	}
	return b.items[i], true
}

// Put replaces the appointment with a's id or appends a.
func (b *Book) Put(a Appointment) {
	if i, ok := b.index[a.ID]; ok {
		b.items[i] = a
		return
	}
	b.index[a.ID] = len(b.items)
	b.items = append(b.items, a)
}

// Remove deletes id and reports whether it was present.
func (b *Book) Remove(id string) bool {
	i, ok := b.index[id]
	if !ok {
		return false
	}
	b.items = append(b.items[:i], b.items[i+1:]...)
	delete(b.index, id)
	for j := i; j < len(b.items); j++ {
		b.index[b.items[j].ID] = j
	}
	return true
}

// Without returns the collection minus id.
func (b *Book) Without(id string) []Appointment {
	out := make([]Appointment, 0, len(b.items))
	for _, a := range b.items {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
