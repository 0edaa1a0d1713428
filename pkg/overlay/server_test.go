package overlay

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/rovlink/pkg/telemetry"
)

const sensorReply = "45.1\t22.3\t0\t120.0\t12.1\t1.5\t30.2\t18.2"

func TestDisplayAppend(t *testing.T) {
	d := NewDisplay()
	require.Equal(t, []string{"Humidity: READY", "Temperature: READY", "Input: READY\tOut: READY"}, d.Latest().Labels())

	require.NoError(t, d.Append(telemetry.MakeRow(1000, sensorReply)))
	r := d.Latest()
	require.Equal(t, "45.1", r.Humidity)
	require.Equal(t, "22.3", r.Temperature)
	require.Equal(t, "0", r.Leak)
	require.Equal(t, "120.0", r.PowerIn)
	require.Equal(t, "18.2", r.PowerOut)

	// a short row keeps the columns it does not carry.
	require.NoError(t, d.Append(telemetry.MakeRow(1050, "46.0")))
	r = d.Latest()
	require.Equal(t, "46.0", r.Humidity)
	require.Equal(t, "18.2", r.PowerOut)
}

func TestDisplayWatch(t *testing.T) {
	d := NewDisplay()
	updates, cancel := d.Watch()
	require.Equal(t, NotReady, (<-updates).Humidity)

	// only the latest update is kept for a slow watcher.
	d.Append(telemetry.MakeRow(1, "1"))
	d.Append(telemetry.MakeRow(2, "2"))
	require.Equal(t, "2", (<-updates).Humidity)

	cancel()
	d.Append(telemetry.MakeRow(3, "3"))
	select {
	case <-updates:
		t.Fatal("update after cancel")
	default:
	}
}

func TestServerStatus(t *testing.T) {
	d := NewDisplay()
	d.Append(telemetry.MakeRow(1000, sensorReply))
	srv := httptest.NewServer(NewServer("", d).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var r Readings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	require.Equal(t, "45.1", r.Humidity)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), Title)
	require.Contains(t, string(page), "Humidity: 45.1")
}

func TestServerWebsocket(t *testing.T) {
	d := NewDisplay()
	srv := httptest.NewServer(NewServer("", d).Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	var r Readings
	require.NoError(t, websocket.JSON.Receive(conn, &r))
	require.Equal(t, NotReady, r.Humidity)

	d.Append(telemetry.MakeRow(1000, sensorReply))
	require.NoError(t, websocket.JSON.Receive(conn, &r))
	require.Equal(t, "45.1", r.Humidity)
	require.Equal(t, "18.2", r.PowerOut)
}
