package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rovlink/pkg/device"
	"github.com/robotalks/rovlink/pkg/device/devicetest"
	"github.com/robotalks/rovlink/pkg/registry"
)

func TestStatusOf(t *testing.T) {
	opener := devicetest.NewOpener(map[string]devicetest.Responder{
		"/dev/ttyUSB0": devicetest.Firmware("MOTOR", ""),
	})
	reg := registry.New(nil, func(path string) *device.Link {
		return device.NewLink(path, 9600, time.Second, opener)
	})
	_, err := reg.Assign("/dev/ttyUSB0")
	require.NoError(t, err)
	defer reg.CloseAll()

	env := startServer(t, reg)
	c := dial(t, env.server.Addr(registry.RoleMotor))
	defer c.conn.Close()
	require.Equal(t, "OK 1", c.exchange("MOT1"))

	st := StatusOf("abc", 8010, env.server, reg)
	require.Equal(t, "abc", st.ID)
	require.Equal(t, "127.0.0.1", st.Host)
	require.Equal(t, "/dev/ttyUSB0", st.Motor)
	require.Empty(t, st.Sensor)
	require.False(t, st.Ready())
	require.Equal(t, c.conn.LocalAddr().String(), st.Clients["motor"])

	data, err := json.Marshal(&st)
	require.NoError(t, err)
	var decoded Status
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, st.Motor, decoded.Motor)
	require.Equal(t, st.Clients, decoded.Clients)
}

func TestStatusTopic(t *testing.T) {
	require.Equal(t, "rov/abc/status", StatusTopic("abc"))
}

func TestNewAnnouncerInvalidURL(t *testing.T) {
	_, err := NewAnnouncer("broker", "abc", time.Second, nil)
	require.Error(t, err)
}
