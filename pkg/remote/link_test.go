package remote

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoRelay answers every line with "ack:"+line, except "hang".
func echoRelay(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimSuffix(line, "\n")
					switch line {
					case "hang":
						continue
					case "bye":
						return
					}
					conn.Write([]byte("ack:" + line + "\n"))
				}
			}(conn)
		}
	}()
	return ln
}

func flakyDial(failures int32, attempts *int32) DialFunc {
	var d net.Dialer
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if atomic.AddInt32(attempts, 1) <= failures {
			return nil, errors.New("connection refused")
		}
		return d.DialContext(ctx, network, addr)
	}
}

func TestConnectRetries(t *testing.T) {
	ln := echoRelay(t)
	var attempts int32
	l := New(ln.Addr().String())
	l.RetryInterval = 10 * time.Millisecond
	l.Dial = flakyDial(3, &attempts)
	require.NoError(t, l.Connect(context.Background()))
	defer l.Close()
	require.EqualValues(t, 4, atomic.LoadInt32(&attempts))
	require.True(t, l.IsConnected())

	reply, err := l.Exchange("MOT1")
	require.NoError(t, err)
	require.Equal(t, "ack:MOT1", reply)
}

func TestConnectCanceled(t *testing.T) {
	var attempts int32
	l := New("127.0.0.1:1")
	l.RetryInterval = 10 * time.Millisecond
	l.Dial = flakyDial(1000, &attempts)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, l.Connect(ctx))
	require.False(t, l.IsConnected())
	require.True(t, atomic.LoadInt32(&attempts) > 1)
}

func TestConnectPairNeverPartial(t *testing.T) {
	ln := echoRelay(t)
	motor := New(ln.Addr().String())
	var attempts int32
	sensor := New("127.0.0.1:1")
	sensor.RetryInterval = 10 * time.Millisecond
	sensor.Dial = flakyDial(1000, &attempts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ConnectPair(ctx, motor, sensor)
	require.Error(t, err)
	require.False(t, motor.IsConnected())
	require.False(t, sensor.IsConnected())
}

func TestConnectPairReleasesMotor(t *testing.T) {
	ln := echoRelay(t)
	var motorAttempts, sensorAttempts int32
	motor, sensor := New(ln.Addr().String()), New(ln.Addr().String())
	motor.Dial = flakyDial(0, &motorAttempts)
	sensor.RetryInterval = 10 * time.Millisecond
	sensor.Dial = flakyDial(3, &sensorAttempts)
	require.NoError(t, ConnectPair(context.Background(), motor, sensor))
	defer motor.Close()
	defer sensor.Close()
	require.EqualValues(t, 4, atomic.LoadInt32(&sensorAttempts))
	// the motor channel is redialed for every sensor attempt.
	require.EqualValues(t, 4, atomic.LoadInt32(&motorAttempts))
	require.True(t, motor.IsConnected())
	require.True(t, sensor.IsConnected())
}

func TestConnectPair(t *testing.T) {
	ln := echoRelay(t)
	motor, sensor := New(ln.Addr().String()), New(ln.Addr().String())
	require.NoError(t, ConnectPair(context.Background(), motor, sensor))
	defer motor.Close()
	defer sensor.Close()
	require.True(t, motor.IsConnected())
	require.True(t, sensor.IsConnected())
}

func TestExchangeFailures(t *testing.T) {
	testCases := []struct {
		cmd string
		err error
	}{
		{"hang", ErrTimeout},
		{"bye", ErrDisconnected},
	}
	ln := echoRelay(t)
	for _, tc := range testCases {
		t.Run(tc.cmd, func(t *testing.T) {
			l := New(ln.Addr().String())
			l.ReadTimeout = 100 * time.Millisecond
			require.NoError(t, l.Connect(context.Background()))
			_, err := l.Exchange(tc.cmd)
			require.Equal(t, tc.err, err)
			require.False(t, l.IsConnected())
			_, err = l.Exchange("SEN")
			require.Equal(t, ErrNotConnected, err)
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	l := New("127.0.0.1:1")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestConfigNewPair(t *testing.T) {
	conf := NewConfig()
	conf.Host, conf.Port = "10.0.0.1", 9000
	motor, sensor := conf.NewPair()
	require.Equal(t, "10.0.0.1:9000", motor.Addr)
	require.Equal(t, "10.0.0.1:9001", sensor.Addr)
	require.Equal(t, conf.ReadTimeout, sensor.ReadTimeout)
}
