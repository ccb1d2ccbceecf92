package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

func TestRing_KeepsMostRecent(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(domain.SystemEvent{ID: fmt.Sprint(i)})
	}

	got := r.Snapshot()
	ids := make([]string, 0, len(got))
	for _, ev := range got {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"2", "3", "4"}, ids)
	assert.Equal(t, 3, r.Len())
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := NewRing(0)
	r.Push(domain.SystemEvent{ID: "a"})

	assert.Len(t, r.Snapshot(), 1)
	assert.Equal(t, DefaultRingSize, len(r.buf))
}
