package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sub struct{ name string }

func TestTable_SubscribeKeepsOrderAndDuplicates(t *testing.T) {
	tbl := NewTable[*sub]()
	a, b := &sub{"a"}, &sub{"b"}

	tbl.Subscribe("lmb", a)
	tbl.Subscribe("lmb", b)
	tbl.Subscribe("lmb", a)

	assert.Equal(t, []*sub{a, b, a}, tbl.Subscribers("lmb"))
}

func TestTable_UnsubscribeRemovesOneEntry(t *testing.T) {
	tbl := NewTable[*sub]()
	a, b := &sub{"a"}, &sub{"b"}
	tbl.Subscribe("lmb", a)
	tbl.Subscribe("lmb", b)
	tbl.Subscribe("lmb", a)

	assert.True(t, tbl.Unsubscribe("lmb", a))
	assert.Equal(t, []*sub{b, a}, tbl.Subscribers("lmb"))
}

func TestTable_UnsubscribeIsIdempotent(t *testing.T) {
	tbl := NewTable[*sub]()
	a, b := &sub{"a"}, &sub{"b"}
	tbl.Subscribe("rmb", a)

	// Не подписанный актор - не ошибка и не трогает других
	assert.False(t, tbl.Unsubscribe("rmb", b))
	assert.Equal(t, []*sub{a}, tbl.Subscribers("rmb"))

	// Неизвестный топик - тоже без паники
	assert.False(t, tbl.Unsubscribe("nope", a))
}

func TestTable_UnsubscribeAll(t *testing.T) {
	tbl := NewTable[*sub]()
	a, b := &sub{"a"}, &sub{"b"}
	tbl.Subscribe("lmb", a)
	tbl.Subscribe("rmb", a)
	tbl.Subscribe("rmb", b)
	tbl.Subscribe("mw", a)

	assert.Equal(t, 3, tbl.UnsubscribeAll(a))
	assert.False(t, tbl.Contains(a))
	assert.True(t, tbl.Contains(b))
	assert.Equal(t, []string{"rmb"}, tbl.Topics())

	tbl.Clear()
	assert.Empty(t, tbl.Topics())
}

func TestTable_SubscribersReturnsCopy(t *testing.T) {
	tbl := NewTable[*sub]()
	a := &sub{"a"}
	tbl.Subscribe("lmb", a)

	snapshot := tbl.Subscribers("lmb")
	tbl.Unsubscribe("lmb", a)
	assert.Len(t, snapshot, 1, "снимок не должен меняться при отписке")
}
