package history

// DefaultByteBudget bounds the total snapshot memory per session.
const DefaultByteBudget = 5 << 20

// minEntries is the hard floor of retained snapshots. Eviction never goes
// below it, even when a single snapshot alone exceeds the budget, so undo
// stays possible.
const minEntries = 2

type entry struct {
	body string
	size int64
}

// Buffer is a byte-budgeted undo/redo stack of full document snapshots.
// Entries beyond the cursor are invalidated by a new push; the oldest
// entries are evicted from the front when the budget is exceeded.
//
// Buffer is not safe for concurrent use; the owning session serializes
// access.
type Buffer struct {
	entries []entry
	cursor  int
	budget  int64
	total   int64
}

// New returns a Buffer with the given byte budget. Non-positive budgets fall
// back to DefaultByteBudget.
func New(budget int64) *Buffer {
	if budget <= 0 {
		budget = DefaultByteBudget
	}
	return &Buffer{budget: budget, cursor: -1}
}

// Push records a new snapshot as the current position, discarding any redo
// tail and evicting from the front while over budget. It returns how many
// entries were evicted under budget pressure.
func (b *Buffer) Push(snapshot string) int {
	if b.cursor < len(b.entries)-1 {
		for _, e := range b.entries[b.cursor+1:] {
			b.total -= e.size
		}
		b.entries = b.entries[:b.cursor+1]
	}

	// len of a Go string is its encoded byte length, which is what bounds
	// actual memory for multi-byte content.
	e := entry{body: snapshot, size: int64(len(snapshot))}
	b.entries = append(b.entries, e)
	b.total += e.size
	b.cursor = len(b.entries) - 1

	evicted := 0
	for b.total > b.budget && len(b.entries) > minEntries {
		b.total -= b.entries[0].size
		b.entries = b.entries[1:]
		b.cursor--
		evicted++
	}
	return evicted
}

// CanUndo reports whether the cursor can move back.
func (b *Buffer) CanUndo() bool {
	return b.cursor > 0
}

// Undo moves the cursor back one position and returns that snapshot. The
// second return is false when already at the oldest entry.
func (b *Buffer) Undo() (string, bool) {
	if !b.CanUndo() {
		return "", false
	}
	b.cursor--
	return b.entries[b.cursor].body, true
}

// CanRedo reports whether the cursor can move forward.
func (b *Buffer) CanRedo() bool {
	return b.cursor >= 0 && b.cursor < len(b.entries)-1
}

// Redo moves the cursor forward one position and returns that snapshot.
func (b *Buffer) Redo() (string, bool) {
	if !b.CanRedo() {
		return "", false
	}
	b.cursor++
	return b.entries[b.cursor].body, true
}

// Current returns the snapshot at the cursor, if any.
func (b *Buffer) Current() (string, bool) {
	if b.cursor < 0 || b.cursor >= len(b.entries) {
		return "", false
	}
	return b.entries[b.cursor].body, true
}

// Len returns the number of retained snapshots.
func (b *Buffer) Len() int { return len(b.entries) }

// TotalBytes returns the summed encoded size of retained snapshots.
func (b *Buffer) TotalBytes() int64 { return b.total }
