package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verba-platform/verba/internal/events"
)

func TestEventToLog_ValidResourceID(t *testing.T) {
	chatID := uuid.New()
	event := events.AuditEvent{
		UserID:       uuid.New(),
		EventType:    events.EventUsageCommit,
		Severity:     "info",
		ResourceType: "chat",
		ResourceID:   chatID.String(),
		Details:      "chat completion billed",
		Timestamp:    time.Now().UTC(),
	}

	log := eventToLog(event)

	assert.Equal(t, event.UserID, log.UserID)
	assert.Equal(t, events.EventUsageCommit, log.EventType)
	assert.Equal(t, "info", log.Severity)
	assert.Equal(t, "chat", log.ResourceType)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, chatID, *log.ResourceID)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "chat completion billed", details["message"])
}

func TestEventToLog_InvalidResourceID(t *testing.T) {
	event := events.AuditEvent{
		UserID:       uuid.New(),
		EventType:    events.EventQuotaExceeded,
		Severity:     "warn",
		ResourceType: "capability",
		ResourceID:   "tts",
		Details:      "limit reached",
		Timestamp:    time.Now().UTC(),
	}

	log := eventToLog(event)
	assert.Nil(t, log.ResourceID, "non-UUID resource ids are stored as NULL")
	assert.Equal(t, "capability", log.ResourceType)
}

func TestEventToLog_EmptyResourceID(t *testing.T) {
	event := events.AuditEvent{
		UserID:    uuid.New(),
		EventType: events.EventPlanGranted,
		Severity:  "info",
		Details:   "granted plan pro",
		Timestamp: time.Now().UTC(),
	}

	log := eventToLog(event)
	assert.Nil(t, log.ResourceID)
	assert.NotEqual(t, uuid.Nil, log.ID)
}
