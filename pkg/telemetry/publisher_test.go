package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rovlink/pkg/mqtt"
)

func TestPublisherOffline(t *testing.T) {
	q, err := mqtt.NewQueueFromURL("mqtt://localhost:1883/", "test")
	require.NoError(t, err)
	p := NewPublisher(q)
	require.NotEmpty(t, p.Session)
	require.NoError(t, p.Append(MakeRow(1, "45.1\t22.3")))
	require.Equal(t, ErrEmptyRow, p.Append(nil))
}
