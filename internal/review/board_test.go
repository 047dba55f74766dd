package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureUsers() []UserAccountRequest {
	return []UserAccountRequest{
		{UserID: 1, FullName: "Ana Lima", Branch: "North", Role: []string{"cashier"}, RequestStatus: "pending", CreatedAt: "2024-03-01T10:00:00Z"},
		{UserID: 2, FullName: "Ben Cho", Branch: "South", Role: []string{"manager"}, RequestStatus: "Pending ", CreatedAt: "2024-03-02T10:00:00Z"},
		{UserID: 3, FullName: "Cara Diaz", Branch: "North", Role: []string{"admin", "cashier"}, RequestStatus: "PENDING", CreatedAt: "2024-03-03T10:00:00Z"},
		{UserID: 4, FullName: "Dan Egan", Branch: "East", Role: []string{"cashier"}, RequestStatus: "approved", CreatedAt: "2024-03-05T10:00:00Z"},
	}
}

func fixtureInventory() []InventoryChangeRequest {
	return []InventoryChangeRequest{
		{
			PendingID: 10, ActionType: "add", RequestStatus: "pending", BranchName: "North",
			CreatedByID: 7, CreatedByName: "Mia Park", CreatedAt: "2024-02-28T10:00:00Z",
			Payload: InventoryPayload{ProductData: map[string]any{"product_name": "Rice 5kg"}},
		},
		{
			PendingID: 11, ActionType: "update", RequestStatus: "pending", BranchName: "South",
			CreatedByID: 8, CreatedByName: "Leo Ruiz", CreatedAt: "2024-03-04T10:00:00Z",
			Payload: InventoryPayload{ProductData: map[string]any{"name": "Olive Oil"}},
		},
		{
			PendingID: 12, ActionType: "add", RequestStatus: "rejected", BranchName: "North",
			CreatedByName: "Mia Park", CreatedAt: "2024-03-06T10:00:00Z",
		},
	}
}

func TestPendingUsers_OnlyPending(t *testing.T) {
	got := PendingUsers(fixtureUsers(), "")
	require.Len(t, got, 3)
	for _, u := range got {
		assert.True(t, IsPending(u.RequestStatus), "user %d", u.UserID)
	}
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].UserID, got[1].UserID, got[2].UserID})
}

func TestPendingUsers_SearchMatchesAnyField(t *testing.T) {
	tests := []struct {
		term string
		want []int64
	}{
		{term: "north", want: []int64{1, 3}},
		{term: "  CHO ", want: []int64{2}},
		{term: "admin", want: []int64{3}},
		{term: "cashier", want: []int64{1, 3}},
		{term: "nobody", want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := PendingUsers(fixtureUsers(), tt.term)
			ids := make([]int64, 0, len(got))
			for _, u := range got {
				ids = append(ids, u.UserID)
				term := strings.ToLower(strings.TrimSpace(tt.term))
				assert.True(t, containsTerm(term, userSearchFields(u)...))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPendingInventory_SearchesProductBranchAndCreator(t *testing.T) {
	assert.Len(t, PendingInventory(fixtureInventory(), ""), 2)

	got := PendingInventory(fixtureInventory(), "olive")
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].PendingID)

	got = PendingInventory(fixtureInventory(), "mia")
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].PendingID)
}

func TestFilterInventory_ActionType(t *testing.T) {
	got := FilterInventory(fixtureInventory(), Filter{Status: StatusAll, ActionType: "add"})
	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].PendingID)
	assert.Equal(t, int64(12), got[1].PendingID)
}

func TestCombine_NewestFirst(t *testing.T) {
	users := []UserAccountRequest{
		{UserID: 1, RequestStatus: "pending", CreatedAt: "2024-01-01T00:00:01Z"},
		{UserID: 2, RequestStatus: "pending", CreatedAt: "2024-01-01T00:00:02Z"},
		{UserID: 3, RequestStatus: "pending", CreatedAt: "2024-01-01T00:00:03Z"},
	}
	inventory := []InventoryChangeRequest{
		{PendingID: 100, RequestStatus: "pending", CreatedAt: "2024-01-01T00:00:00Z"},
		{PendingID: 104, RequestStatus: "pending", CreatedAt: "2024-01-01T00:00:04Z"},
	}

	got := Combine(users, inventory)
	require.Len(t, got, 5)

	type ref struct {
		kind Kind
		id   int64
	}
	order := make([]ref, 0, len(got))
	for _, e := range got {
		order = append(order, ref{e.Kind, e.Record.RequestID()})
	}
	assert.Equal(t, []ref{
		{KindInventory, 104}, {KindUser, 3}, {KindUser, 2}, {KindUser, 1}, {KindInventory, 100},
	}, order)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
	}
}

func TestCombine_UnparsableTimestampsSortLast(t *testing.T) {
	got := Combine(
		[]UserAccountRequest{{UserID: 1, CreatedAt: "not a date"}, {UserID: 2, CreatedAt: "2024-05-01 08:00:00"}},
		[]InventoryChangeRequest{{PendingID: 3}},
	)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Record.RequestID())
	assert.Equal(t, ParseTimestamp(""), got[1].CreatedAt)
	assert.Equal(t, ParseTimestamp(""), got[2].CreatedAt)
}

func TestBoard_LoadingUntilSet(t *testing.T) {
	b := NewBoard(2)
	assert.True(t, b.Loading(KindUser))
	assert.True(t, b.Loading(KindInventory))

	b.SetUsers(fixtureUsers())
	assert.False(t, b.Loading(KindUser))
	assert.True(t, b.Loading(KindInventory))
}

func TestBoard_DoesNotAliasSource(t *testing.T) {
	src := fixtureUsers()
	b := NewBoard(0)
	b.SetUsers(src)
	src[0].RequestStatus = "approved"

	assert.Equal(t, []int64{1, 2, 3}, b.PendingIDs(KindUser))
}

func TestBoard_Pagination(t *testing.T) {
	b := NewBoard(2)
	b.SetUsers(fixtureUsers())

	assert.Equal(t, 2, b.PageCount(KindUser))
	assert.Equal(t, []int64{1, 2}, b.PageIDs(KindUser))

	page, ok := b.PageOf(KindUser, 3)
	require.True(t, ok)
	assert.Equal(t, 2, page)

	_, ok = b.PageOf(KindUser, 4)
	assert.False(t, ok)

	b.SetPage(KindUser, 9)
	assert.Equal(t, 2, b.Page(KindUser))
	assert.Equal(t, []int64{3}, b.PageIDs(KindUser))

	b.SetSearch("north")
	assert.Equal(t, 1, b.Page(KindUser))
	assert.Equal(t, []int64{1, 3}, b.PageIDs(KindUser))
}

func TestBoard_MemoizesUntilInputsChange(t *testing.T) {
	b := NewBoard(0)
	b.SetUsers(fixtureUsers())
	b.SetInventory(fixtureInventory())

	first := b.Combined()
	second := b.Combined()
	require.Len(t, first, 5)
	assert.Same(t, &first[0], &second[0])

	b.SetSearch("north")
	third := b.Combined()
	assert.Len(t, third, 3)
}
