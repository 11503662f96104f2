package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/bus"
)

func TestAppendPersistsAndBroadcasts(t *testing.T) {
	log := &eventLogStub{}
	b := bus.NewMemoryBus()
	svc := NewEventService(log, b, nil, nil)
	ctx := context.Background()

	classSub, err := b.Subscribe(ctx, bus.ClassEventsTopic(1))
	require.NoError(t, err)
	defer classSub.Close()
	teamSub, err := b.Subscribe(ctx, bus.TeamEventsTopic(5))
	require.NoError(t, err)
	defer teamSub.Close()

	event := &models.Event{
		Type:      models.EventTeamRaisedHand,
		ClassID:   models.Int64Ptr(1),
		TeamID:    models.Int64Ptr(5),
		ActorID:   models.Int64Ptr(10),
		ActorRole: models.RolePtr(models.RoleElder),
	}
	require.NoError(t, svc.Append(ctx, event))
	assert.NotZero(t, event.ID)

	for _, sub := range []bus.Subscription{classSub, teamSub} {
		select {
		case msg := <-sub.C():
			var frame struct {
				Kind    string        `json:"kind"`
				Payload dto.EventItem `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(msg.Payload, &frame))
			assert.Equal(t, dto.FrameEvent, frame.Kind)
			assert.Equal(t, string(models.EventTeamRaisedHand), frame.Payload.Type)
			assert.Equal(t, event.ID, frame.Payload.ID)
		case <-time.After(time.Second):
			t.Fatal("broadcast never arrived")
		}
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	log := &eventLogStub{}
	svc := NewEventService(log, bus.NewMemoryBus(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Append(ctx, &models.Event{
			Type:    models.EventStudentJoinedClass,
			ClassID: models.Int64Ptr(1),
			ActorID: models.Int64Ptr(int64(100 + i)),
			Time:    time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}))
	}

	items, pagination, err := svc.History(ctx, 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.True(t, items[0].ID > items[1].ID)
	assert.True(t, items[1].ID > items[2].ID)
}

func TestHistorySinceSpansManyPages(t *testing.T) {
	log := &eventLogStub{}
	svc := NewEventService(log, bus.NewMemoryBus(), nil, nil)
	ctx := context.Background()

	const count = 1203
	for i := 0; i < count; i++ {
		require.NoError(t, log.Append(ctx, &models.Event{
			Type:    models.EventStudentJoinedClass,
			ClassID: models.Int64Ptr(1),
			ActorID: models.Int64Ptr(int64(i)),
		}))
	}

	events, err := svc.HistorySince(ctx, 1, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, count)
	// Newest-first across page boundaries.
	assert.Equal(t, int64(count), events[0].ID)
	assert.Equal(t, int64(1), events[count-1].ID)
}

func TestHistoryDefaultsPagination(t *testing.T) {
	log := &eventLogStub{}
	svc := NewEventService(log, bus.NewMemoryBus(), nil, nil)

	_, pagination, err := svc.History(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 100, pagination.PageSize)
}
