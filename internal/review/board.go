package review

import (
	"slices"
	"sync"
)

// Board holds the source request lists handed down by the data layer plus the transient view
// state around them: search term, loading flags and pagination. Derived lists are memoized
// on the inputs and must be treated as read-only by callers.
type Board struct {
	mu        sync.Mutex
	users     []UserAccountRequest
	inventory []InventoryChangeRequest
	loading   map[Kind]bool
	term      string
	pageSize  int
	pages     map[Kind]int
	version   uint64
	memo      boardMemo
}

type boardMemo struct {
	version   uint64
	ok        bool
	users     []UserAccountRequest
	inventory []InventoryChangeRequest
	combined  []CombinedEntry
}

// NewBoard creates a board. pageSize <= 0 disables pagination.
func NewBoard(pageSize int) *Board {
	return &Board{
		loading:  map[Kind]bool{KindUser: true, KindInventory: true},
		pages:    map[Kind]int{KindUser: 1, KindInventory: 1},
		pageSize: pageSize,
	}
}

// SetUsers replaces the user request source list and marks it loaded.
func (b *Board) SetUsers(reqs []UserAccountRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = slices.Clone(reqs)
	b.loading[KindUser] = false
	b.touch()
}

// SetInventory replaces the inventory request source list and marks it loaded.
func (b *Board) SetInventory(reqs []InventoryChangeRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inventory = slices.Clone(reqs)
	b.loading[KindInventory] = false
	b.touch()
}

func (b *Board) SetLoading(kind Kind, loading bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading[kind] = loading
}

func (b *Board) Loading(kind Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading[kind]
}

// SetSearch changes the search term and sends both lists back to their first page.
func (b *Board) SetSearch(term string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if term == b.term {
		return
	}
	b.term = term
	b.pages[KindUser] = 1
	b.pages[KindInventory] = 1
	b.touch()
}

func (b *Board) Search() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.term
}

func (b *Board) touch() {
	b.version++
}

func (b *Board) derived() boardMemo {
	if b.memo.ok && b.memo.version == b.version {
		return b.memo
	}
	users := PendingUsers(b.users, b.term)
	inventory := PendingInventory(b.inventory, b.term)
	b.memo = boardMemo{
		version:   b.version,
		ok:        true,
		users:     users,
		inventory: inventory,
		combined:  Combine(users, inventory),
	}
	return b.memo
}

func (b *Board) PendingUsers() []UserAccountRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.derived().users
}

func (b *Board) PendingInventory() []InventoryChangeRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.derived().inventory
}

// Combined returns the merged newest-first feed of both pending lists.
func (b *Board) Combined() []CombinedEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.derived().combined
}

// PendingIDs lists the visible pending IDs of one kind in display order.
func (b *Board) PendingIDs(kind Kind) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingIDs(kind)
}

func (b *Board) pendingIDs(kind Kind) []int64 {
	d := b.derived()
	var ids []int64
	switch kind {
	case KindUser:
		ids = make([]int64, 0, len(d.users))
		for _, u := range d.users {
			ids = append(ids, u.UserID)
		}
	case KindInventory:
		ids = make([]int64, 0, len(d.inventory))
		for _, r := range d.inventory {
			ids = append(ids, r.PendingID)
		}
	}
	return ids
}

func (b *Board) Page(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[kind]
}

// SetPage moves one list to page p, clamped to the available pages.
func (b *Board) SetPage(kind Kind, p int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[kind] = clampPage(p, b.pageCount(kind))
}

func (b *Board) PageCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pageCount(kind)
}

func (b *Board) pageCount(kind Kind) int {
	if b.pageSize <= 0 {
		return 1
	}
	n := len(b.pendingIDs(kind))
	if n == 0 {
		return 1
	}
	return (n + b.pageSize - 1) / b.pageSize
}

// PageOf returns the page holding id, or false when id is not visible.
func (b *Board) PageOf(kind Kind, id int64) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.Index(b.pendingIDs(kind), id)
	if idx < 0 {
		return 0, false
	}
	return pageForIndex(idx, b.pageSize), true
}

// PageIDs returns the IDs rendered on the current page of one list.
func (b *Board) PageIDs(kind Kind) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.pendingIDs(kind)
	if b.pageSize <= 0 {
		return ids
	}
	start := (b.pages[kind] - 1) * b.pageSize
	if start >= len(ids) {
		return nil
	}
	end := min(start+b.pageSize, len(ids))
	return ids[start:end]
}

func pageForIndex(idx, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	return idx/perPage + 1
}

func clampPage(p, count int) int {
	if p < 1 {
		return 1
	}
	if p > count {
		return count
	}
	return p
}
