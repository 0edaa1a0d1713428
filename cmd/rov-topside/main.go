package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/rovlink/pkg/datalog"
	"github.com/robotalks/rovlink/pkg/env"
	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/gamepad"
	"github.com/robotalks/rovlink/pkg/mqtt"
	"github.com/robotalks/rovlink/pkg/overlay"
	"github.com/robotalks/rovlink/pkg/remote"
	"github.com/robotalks/rovlink/pkg/telemetry"
	"github.com/robotalks/rovlink/pkg/topside"
)

func init() {
	remote.SetupFlags()
	gamepad.SetupFlags()
	topside.SetupFlags()
	datalog.SetupFlags()
	overlay.SetupFlags()
	mqtt.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	runner := fx.NewRunner().HandleSignals()
	var sinks []telemetry.Sink

	logger, err := datalog.Default().Open(telemetry.Header)
	if err != nil {
		glog.Exitf("data log: %v", err)
	}
	if logger != nil {
		defer logger.Close()
		glog.Infof("logging telemetry to %s", logger.Path())
		sinks = append(sinks, logger)
	}

	display := overlay.NewDisplay()
	sinks = append(sinks, display)
	if server := overlay.Default().NewServer(display); server != nil {
		runner.Go(server)
	}

	if mqttConf := mqtt.Default(); mqttConf.Enabled() {
		q, err := mqttConf.NewQueue("rov-topside:" + env.MachineID())
		if err != nil {
			glog.Exit(err)
		}
		pub := telemetry.NewPublisher(q)
		sinks = append(sinks, pub)
		runner.Go(pub)
	}

	poller := gamepad.Default().NewPoller()
	motor, sensor := remote.Default().NewPair()
	client := topside.Default().NewClient(poller.Pad, motor, sensor, sinks...)
	runner.Go(poller, fx.NamedRun(client.Name(), fx.RunFunc(func(ctx context.Context) error {
		defer runner.Stop()
		return client.Run(ctx)
	})))

	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
	glog.Info("topside stopped")
}
