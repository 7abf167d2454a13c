package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

func TestSerializeChange(t *testing.T) {
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	change := domain.Change{
		Entity:   domain.ChangeEntityDisaster,
		Action:   domain.ChangeCreated,
		Source:   "USGS",
		SourceID: "us7000abcd",
		At:       at,
	}

	msg, err := serializeChange(change)
	require.NoError(t, err)

	assert.Equal(t, []byte("USGS|us7000abcd"), msg.Key)
	assert.Contains(t, string(msg.Value), `"entity":"disaster"`)
	assert.Contains(t, string(msg.Value), `"action":"created"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "entity", msg.Headers[0].Key)
	assert.Equal(t, []byte("disaster"), msg.Headers[0].Value)
	assert.Equal(t, "action", msg.Headers[1].Key)
	assert.Equal(t, []byte("created"), msg.Headers[1].Value)
	assert.Equal(t, "changed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(at.Format(time.RFC3339)), msg.Headers[2].Value)
}
