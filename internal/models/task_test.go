package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProtocol(t *testing.T) {
	cases := []struct {
		in   string
		want Protocol
		ok   bool
	}{
		{"tcp", ProtocolTCP, true},
		{"TCP", ProtocolTCP, true},
		{"Udp", ProtocolUDP, true},
		{"icmp", ProtocolICMP, true},
		{"http", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseProtocol(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestAssignmentStatusTerminal(t *testing.T) {
	assert.True(t, AssignmentStatusCompleted.Terminal())
	assert.True(t, AssignmentStatusFailed.Terminal())
	assert.True(t, AssignmentStatusStopped.Terminal())
	assert.False(t, AssignmentStatusPending.Terminal())
	assert.False(t, AssignmentStatusAssigned.Terminal())
	assert.False(t, AssignmentStatusRunning.Terminal())
}

func TestResultUpdateEmpty(t *testing.T) {
	assert.True(t, ResultUpdate{}.Empty())

	sent := int64(1)
	assert.False(t, ResultUpdate{PacketsSent: &sent}.Empty())

	status := AssignmentStatusRunning
	assert.False(t, ResultUpdate{Status: &status}.Empty())
}
