package device_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rovlink/pkg/device"
	"github.com/robotalks/rovlink/pkg/device/devicetest"
)

const testPath = "/dev/ttyUSB0"

func newTestLink(responder devicetest.Responder) (*device.Link, *devicetest.Opener) {
	opener := devicetest.NewOpener(map[string]devicetest.Responder{testPath: responder})
	return device.NewLink(testPath, 9600, time.Second, opener), opener
}

func TestOpenFlushes(t *testing.T) {
	link, opener := newTestLink(devicetest.Firmware("MOTOR", ""))
	require.False(t, link.IsOpen())
	require.NoError(t, link.Open())
	require.True(t, link.IsOpen())
	require.Equal(t, 1, opener.Last(testPath).Flushed())

	// opening again is a no-op.
	require.NoError(t, link.Open())
	require.Len(t, opener.Ports(testPath), 1)
}

func TestOpenFailure(t *testing.T) {
	link := device.NewLink("/dev/ttyACM9", 9600, time.Second, devicetest.NewOpener(nil))
	err := link.Open()
	require.Error(t, err)
	var openErr *device.OpenError
	require.True(t, errors.As(err, &openErr))
	require.Equal(t, "/dev/ttyACM9", openErr.Path)
	require.True(t, errors.Is(err, devicetest.ErrNoDevice))
	require.False(t, link.IsOpen())
}

func TestExchange(t *testing.T) {
	link, opener := newTestLink(func(cmd string) (string, bool) {
		return "  " + cmd + "-ACK \r", true
	})
	require.NoError(t, link.Open())

	reply, err := link.Exchange("TYPE")
	require.NoError(t, err)
	require.Equal(t, "TYPE-ACK", reply)

	reply, err = link.Exchange("1,2\t3,4\n")
	require.NoError(t, err)
	require.Equal(t, "1,2\t3,4-ACK", reply)
	require.Equal(t, []string{"TYPE", "1,2\t3,4"}, opener.Last(testPath).Received())
}

func TestExchangeTimeoutCloses(t *testing.T) {
	link, opener := newTestLink(devicetest.Silent)
	require.NoError(t, link.Open())

	_, err := link.Exchange("TYPE")
	require.Equal(t, device.ErrTimeout, err)
	require.False(t, link.IsOpen())
	require.True(t, opener.Last(testPath).Closed())

	// no implicit reopen.
	_, err = link.Exchange("TYPE")
	require.Equal(t, device.ErrClosed, err)
	require.Len(t, opener.Ports(testPath), 1)

	// explicit recovery.
	opener.SetDevice(testPath, devicetest.Firmware("SENSOR", ""))
	require.NoError(t, link.Reconnect())
	reply, err := link.Exchange("TYPE")
	require.NoError(t, err)
	require.Equal(t, "SENSOR", reply)
	require.Len(t, opener.Ports(testPath), 2)
}

func TestExchangeErrors(t *testing.T) {
	ioErr := errors.New("device reset")
	testCases := []struct {
		name   string
		setup  func(*devicetest.Port)
		expect func(*testing.T, error)
	}{
		{
			name:  "partial reply",
			setup: func(p *devicetest.Port) { p.Responder = func(string) (string, bool) { return "", false }; p.Inject("MOT") },
			expect: func(t *testing.T, err error) {
				require.Equal(t, device.ErrTimeout, err)
			},
		},
		{
			name:  "malformed reply",
			setup: func(p *devicetest.Port) { p.Responder = func(string) (string, bool) { return "\xff\xfe", true } },
			expect: func(t *testing.T, err error) {
				require.True(t, errors.Is(err, device.ErrMalformed))
			},
		},
		{
			name:  "io error",
			setup: func(p *devicetest.Port) { p.FailReads(ioErr) },
			expect: func(t *testing.T, err error) {
				var e *device.IOError
				require.True(t, errors.As(err, &e))
				require.Equal(t, "read", e.Op)
				require.True(t, errors.Is(err, ioErr))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			link, opener := newTestLink(devicetest.Firmware("MOTOR", ""))
			require.NoError(t, link.Open())
			tc.setup(opener.Last(testPath))
			_, err := link.Exchange("TYPE")
			require.Error(t, err)
			tc.expect(t, err)
			require.False(t, link.IsOpen())
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	link, opener := newTestLink(devicetest.Firmware("MOTOR", ""))
	require.NoError(t, link.Close())
	require.NoError(t, link.Open())
	require.NoError(t, link.Close())
	require.NoError(t, link.Close())
	require.True(t, opener.Last(testPath).Closed())
	require.False(t, link.IsOpen())
}
