package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

func TestWALStore_SaveAndEventsAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Save(domain.LifecycleEvent{TokenID: "m1", From: domain.StateNew, To: domain.StateScoring, At: at}))
	require.NoError(t, store.Save(domain.LifecycleEvent{
		TokenID: "m1",
		From:    domain.StateScoring,
		To:      domain.StateExpired,
		At:      at.Add(15 * time.Second),
		Detail:  map[string]string{"trades": "1"},
	}))
	require.Equal(t, uint64(2), store.CurrentIndex())

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].Index)
	require.Equal(t, domain.StateScoring, records[0].Event.To)
	require.Equal(t, "1", records[1].Event.Detail["trades"])
	require.True(t, at.Equal(records[0].Event.At))

	records, err = store.EventsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = store.EventsAfter(2)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestWALStore_Validation(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.Save(domain.LifecycleEvent{}))

	var nilStore *WALStore
	require.Error(t, nilStore.Save(domain.LifecycleEvent{TokenID: "m"}))
	require.Zero(t, nilStore.CurrentIndex())
}
