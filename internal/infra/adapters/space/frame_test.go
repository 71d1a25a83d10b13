package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  Frame
	}{
		{"event and data", "event: complete\ndata: [1,2,3]", Frame{Event: "complete", Data: "[1,2,3]", HasData: true}},
		{"no space after colon", "event:error\ndata:boom", Frame{Event: "error", Data: "boom", HasData: true}},
		{"trailing CR tolerated", "event: heartbeat\r\ndata: null\r", Frame{Event: "heartbeat", Data: "null", HasData: true}},
		{"event without data", "event: heartbeat", Frame{Event: "heartbeat"}},
		{"data without event", "data: x", Frame{Data: "x", HasData: true}},
		{"empty data line", "event: error\ndata:", Frame{Event: "error", Data: "", HasData: true}},
		{"last data wins", "event: complete\ndata: [1]\ndata: [2]", Frame{Event: "complete", Data: "[2]", HasData: true}},
		{"other lines ignored", ": comment\nid: 7\nretry: 100\nevent: generating", Frame{Event: "generating"}},
		{"empty block", "", Frame{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFrame(tt.block))
		})
	}
}

func TestFrame_IsTerminal(t *testing.T) {
	assert.True(t, Frame{Event: EventComplete}.IsTerminal())
	assert.True(t, Frame{Event: EventError}.IsTerminal())
	assert.False(t, Frame{Event: EventHeartbeat}.IsTerminal())
	assert.False(t, Frame{Event: EventGenerating}.IsTerminal())
	assert.False(t, Frame{}.IsTerminal())
}
