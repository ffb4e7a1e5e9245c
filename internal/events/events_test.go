package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_WireShape(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"refresh folder", NewRefreshFolder(4), `{"type":"RefreshFolder","id":4}`},
		{"refresh note keeps zero commit", NewRefreshNote(1, 2, 0, false), `{"type":"RefreshNote","folder_id":1,"note_id":2,"commit":0,"deleted":false}`},
		{"text", NewText("hi"), `{"type":"Text","text":"hi"}`},
		{"timeout", NewTimeout(), `{"type":"Timeout"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			var back Event
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.ev, back)
		})
	}
}

func TestEvent_UnknownType(t *testing.T) {
	var e Event
	assert.Error(t, json.Unmarshal([]byte(`{"type":"Nope"}`), &e))

	_, err := json.Marshal(Event{Type: "Nope"})
	assert.Error(t, err)
}

func TestEvent_Terminal(t *testing.T) {
	assert.True(t, NewAcceptPendingDevice().Terminal())
	assert.True(t, NewTimeout().Terminal())
	assert.False(t, NewRefreshRemote().Terminal())
}
