package relay

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rovlink/pkg/device"
	"github.com/robotalks/rovlink/pkg/device/devicetest"
	"github.com/robotalks/rovlink/pkg/registry"
)

type sent struct {
	role registry.Role
	cmd  string
}

type fakeDevices struct {
	lock    sync.Mutex
	sent    []sent
	fail    map[registry.Role]bool
	rebinds []registry.Role
	reopens []registry.Role
	closed  int
}

func (d *fakeDevices) Send(role registry.Role, cmd string) (string, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sent = append(d.sent, sent{role: role, cmd: cmd})
	if d.fail[role] {
		return "", device.ErrTimeout
	}
	return role.String() + ":" + cmd, nil
}

func (d *fakeDevices) Rebind(role registry.Role) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.rebinds = append(d.rebinds, role)
	return nil
}

func (d *fakeDevices) Reopen(role registry.Role) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.reopens = append(d.reopens, role)
	return nil
}

func (d *fakeDevices) CloseAll() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed++
}

func (d *fakeDevices) lastSent() sent {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.sent[len(d.sent)-1]
}

func TestDispatch(t *testing.T) {
	testCases := []struct {
		cmd   string
		reply string
		sent  *sent
		stop  bool
	}{
		{"MOT1,2\t3,4\t0,0,0,0", "motor:1,2\t3,4\t0,0,0,0", &sent{registry.RoleMotor, "1,2\t3,4\t0,0,0,0"}, false},
		{"MOT", "motor:", &sent{registry.RoleMotor, ""}, false},
		{"SEN", "sensor:GET", &sent{registry.RoleSensor, "GET"}, false},
		{"SENxyz", "sensor:GET", &sent{registry.RoleSensor, "GET"}, false},
		{"STOP", ReplyStopping, nil, true},
		{"FOO", ReplyInvalid, nil, false},
		{"mot1", ReplyInvalid, nil, false},
		{"", ReplyInvalid, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.cmd, func(t *testing.T) {
			devices := &fakeDevices{}
			s := NewServer("127.0.0.1", devices)
			reply, stop := s.Dispatch(tc.cmd)
			require.Equal(t, tc.reply, reply)
			require.Equal(t, tc.stop, stop)
			if tc.sent == nil {
				require.Empty(t, devices.sent)
			} else {
				require.Equal(t, []sent{*tc.sent}, devices.sent)
			}
		})
	}
}

func TestDispatchDeviceError(t *testing.T) {
	devices := &fakeDevices{fail: map[registry.Role]bool{registry.RoleSensor: true}}
	s := NewServer("127.0.0.1", devices)
	reply, stop := s.Dispatch("SEN")
	require.Equal(t, ReplyError, reply)
	require.False(t, stop)
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *testClient {
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) exchange(cmd string) string {
	c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := c.conn.Write([]byte(cmd + "\n"))
	require.NoError(c.t, err)
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSuffix(line, "\n")
}

type serverEnv struct {
	server  *Server
	devices Devices
	cancel  func()
	doneCh  chan error
}

func startServer(t *testing.T, devices Devices) *serverEnv {
	return startServerWith(t, devices, nil)
}

func startServerWith(t *testing.T, devices Devices, configure func(*Server)) *serverEnv {
	s := NewServer("127.0.0.1", devices)
	if configure != nil {
		configure(s)
	}
	require.NoError(t, s.Bind(registry.RoleMotor, 0))
	require.NoError(t, s.Bind(registry.RoleSensor, 0))
	env := &serverEnv{server: s, devices: devices, doneCh: make(chan error, 1)}
	var ctx context.Context
	ctx, env.cancel = context.WithCancel(context.Background())
	go func() { env.doneCh <- s.Serve(ctx) }()
	t.Cleanup(env.cancel)
	return env
}

func (e *serverEnv) wait(t *testing.T) error {
	select {
	case err := <-e.doneCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	return nil
}

func TestServeInvalidKeepsConnection(t *testing.T) {
	env := startServer(t, &fakeDevices{})
	c := dial(t, env.server.Addr(registry.RoleMotor))
	defer c.conn.Close()
	require.Equal(t, ReplyInvalid, c.exchange("FOO"))
	require.Equal(t, "motor:1", c.exchange("MOT1"))
}

func TestServeSensorPoll(t *testing.T) {
	devices := &fakeDevices{}
	env := startServer(t, devices)
	c := dial(t, env.server.Addr(registry.RoleSensor))
	defer c.conn.Close()
	require.Equal(t, "sensor:GET", c.exchange("SENxyz"))
	require.Equal(t, sent{registry.RoleSensor, "GET"}, devices.lastSent())
}

func TestServeClientReconnect(t *testing.T) {
	devices := &fakeDevices{}
	env := startServer(t, devices)
	addr := env.server.Addr(registry.RoleMotor)

	c := dial(t, addr)
	require.Equal(t, "motor:a", c.exchange("MOTa"))
	c.conn.Close()

	c = dial(t, addr)
	defer c.conn.Close()
	require.Equal(t, "motor:b", c.exchange("MOTb"))
	devices.lock.Lock()
	require.Zero(t, devices.closed)
	devices.lock.Unlock()
}

func TestServeChannelsIndependent(t *testing.T) {
	env := startServer(t, &fakeDevices{})
	motor := dial(t, env.server.Addr(registry.RoleMotor))
	sensor := dial(t, env.server.Addr(registry.RoleSensor))
	defer sensor.conn.Close()

	require.Equal(t, "motor:x", motor.exchange("MOTx"))
	motor.conn.Close()
	require.Equal(t, "sensor:GET", sensor.exchange("SEN"))
}

func TestServeStop(t *testing.T) {
	devices := &fakeDevices{}
	env := startServer(t, devices)
	sensor := dial(t, env.server.Addr(registry.RoleSensor))
	defer sensor.conn.Close()
	require.Equal(t, "sensor:GET", sensor.exchange("SEN"))

	motor := dial(t, env.server.Addr(registry.RoleMotor))
	defer motor.conn.Close()
	require.Equal(t, ReplyStopping, motor.exchange("STOP"))

	require.Equal(t, ErrStopRequested, env.wait(t))
	devices.lock.Lock()
	require.Equal(t, 1, devices.closed)
	devices.lock.Unlock()

	// listeners are gone.
	_, err := net.DialTimeout("tcp", env.server.Addr(registry.RoleMotor).String(), 200*time.Millisecond)
	require.Error(t, err)
}

func TestServeCancel(t *testing.T) {
	devices := &fakeDevices{}
	env := startServer(t, devices)
	c := dial(t, env.server.Addr(registry.RoleMotor))
	defer c.conn.Close()
	require.Equal(t, "motor:1", c.exchange("MOT1"))
	env.cancel()
	require.NoError(t, env.wait(t))
}

func TestServeRebindAfterDeviceError(t *testing.T) {
	devices := &fakeDevices{fail: map[registry.Role]bool{registry.RoleMotor: true}}
	env := startServerWith(t, devices, func(s *Server) { s.Rebind = true })
	c := dial(t, env.server.Addr(registry.RoleMotor))
	defer c.conn.Close()
	require.Equal(t, ReplyError, c.exchange("MOT1"))
	// the next request is served after the rebind attempt.
	require.Equal(t, ReplyInvalid, c.exchange("NOP"))
	devices.lock.Lock()
	require.Equal(t, []registry.Role{registry.RoleMotor}, devices.rebinds)
	require.Empty(t, devices.reopens)
	devices.lock.Unlock()
}

func TestServeReopenWithoutRebind(t *testing.T) {
	devices := &fakeDevices{fail: map[registry.Role]bool{registry.RoleSensor: true}}
	env := startServerWith(t, devices, func(s *Server) { s.Rebind = false })
	c := dial(t, env.server.Addr(registry.RoleSensor))
	defer c.conn.Close()
	require.Equal(t, ReplyError, c.exchange("SEN"))
	require.Equal(t, ReplyInvalid, c.exchange("NOP"))
	devices.lock.Lock()
	require.Equal(t, []registry.Role{registry.RoleSensor}, devices.reopens)
	require.Empty(t, devices.rebinds)
	devices.lock.Unlock()
}

func TestServeWithRegistry(t *testing.T) {
	opener := devicetest.NewOpener(map[string]devicetest.Responder{
		"/dev/ttyACM0": devicetest.Firmware("SENSOR", "45.1\t22.3\t0"),
		"/dev/ttyACM1": devicetest.Firmware("MOTOR", ""),
	})
	reg := registry.New(nil, func(path string) *device.Link {
		return device.NewLink(path, 9600, time.Second, opener)
	})
	reg.Lister = func() ([]string, error) { return []string{"/dev/ttyACM1", "/dev/ttyACM0"}, nil }
	require.NoError(t, reg.Discover())

	env := startServer(t, reg)
	sensor := dial(t, env.server.Addr(registry.RoleSensor))
	defer sensor.conn.Close()
	require.Equal(t, "45.1\t22.3\t0", sensor.exchange("SEN"))
	require.Equal(t, []string{"TYPE", "GET"}, opener.Last("/dev/ttyACM0").Received())

	motor := dial(t, env.server.Addr(registry.RoleMotor))
	defer motor.conn.Close()
	require.Equal(t, "OK 0.5,0\t0,0\t0,0,0,0", motor.exchange("MOT0.5,0\t0,0\t0,0,0,0"))
}

func TestBindConflict(t *testing.T) {
	s := NewServer("127.0.0.1", &fakeDevices{})
	require.NoError(t, s.Bind(registry.RoleMotor, 0))
	defer s.closeChannels()
	port := s.Addr(registry.RoleMotor).(*net.TCPAddr).Port
	other := NewServer("127.0.0.1", &fakeDevices{})
	err := other.BindAll(port)
	require.Error(t, err)
	var opErr *net.OpError
	require.True(t, errors.As(err, &opErr))
}
