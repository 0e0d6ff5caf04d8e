package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event() ReservationEvent {
	return ReservationEvent{
		Type:          EventReservationTransitioned,
		ReservationID: "r-1",
		Code:          "HX7K2Q",
		ClientID:      "c1",
		Transition:    "CANCEL",
		From:          "CONFIRMED",
		To:            "CANCELED",
		Seq:           4,
		ActorID:       "c1",
		ActorRole:     "CLIENT",
		PenaltyAmount: "60.00",
		RefundAmount:  "140.00",
		OccurredAt:    "2026-03-01T09:00:00Z",
	}
}

func TestWriteLogLine(t *testing.T) {
	body, err := json.Marshal(event())
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, WriteLogLine(&sb, body))
	assert.Equal(t,
		"[2026-03-01T09:00:00Z] reservation.transitioned | reservation_id=r-1 | code=HX7K2Q | client_id=c1 | CONFIRMED -> CANCELED (CANCEL) | actor=CLIENT/c1 | penalty=60.00 | refund=140.00\n",
		sb.String())
}

func TestWriteLogLine_Points(t *testing.T) {
	ev := event()
	ev.Transition, ev.From, ev.To = "CHECK_OUT", "CHECKED_IN", "CHECKED_OUT"
	ev.PenaltyAmount, ev.RefundAmount = "", ""
	ev.PointsEarned = 8
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, WriteLogLine(&sb, body))
	assert.True(t, strings.HasSuffix(sb.String(), "| points=8\n"), sb.String())
	assert.NotContains(t, sb.String(), "penalty=")
}

func TestWriteLogLine_RejectsBadPayloads(t *testing.T) {
	var sb strings.Builder
	assert.Error(t, WriteLogLine(&sb, []byte("{not json")))
	assert.Error(t, WriteLogLine(&sb, []byte(`{"type":"reservation.created"}`)))
	assert.Empty(t, sb.String())
}

func TestConsumerHandleAppends(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "logs", "lifecycle.log")
	c := NewConsumer("", path, logger)

	body, err := json.Marshal(event())
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}
