package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/rovlink/pkg/device"
	"github.com/robotalks/rovlink/pkg/env"
	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/mqtt"
	"github.com/robotalks/rovlink/pkg/registry"
	"github.com/robotalks/rovlink/pkg/relay"
)

var listOnly bool

func init() {
	device.SetupFlags()
	registry.SetupFlags()
	relay.SetupFlags()
	mqtt.SetupFlags()
	flag.BoolVar(&listOnly, "list", listOnly, "Print the role of every candidate serial device and exit.")
}

func listDevices(reg *registry.Registry) {
	paths, err := reg.Candidates()
	if err != nil {
		glog.Exitf("list serial devices: %v", err)
	}
	if len(paths) == 0 {
		fmt.Println("no serial devices found")
		return
	}
	for _, res := range reg.Probe(paths) {
		if res.Err != nil {
			fmt.Printf("%s: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Printf("%s: %s (%q)\n", res.Path, res.Role, res.Reply)
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	reg := registry.Default().NewRegistry(device.Default(), device.SerialOpener)
	if listOnly {
		listDevices(reg)
		return
	}

	if err := reg.Discover(); err != nil {
		glog.Exitf("device discovery: %v", err)
	}
	conf := relay.Default()
	server, err := conf.NewServer(reg)
	if err != nil {
		reg.CloseAll()
		glog.Exit(err)
	}

	runner := fx.NewRunner().WithStopOnError(true).HandleSignals()
	if mqttConf := mqtt.Default(); mqttConf.Enabled() {
		id := env.MachineID()
		announcer, err := relay.NewAnnouncer(mqttConf.BrokerURL, id, conf.AnnounceInterval, func() relay.Status {
			return relay.StatusOf(id, conf.Port, server, reg)
		})
		if err != nil {
			reg.CloseAll()
			glog.Exit(err)
		}
		reg.OnChange = func(map[registry.Role]string) { announcer.Trigger() }
		server.OnClientChange = announcer.Trigger
		runner.Go(announcer)
	}
	runner.Go(fx.NamedRun("relay", fx.RunFunc(server.Serve)))

	err = runner.Wait()
	if fx.IsOrContains(err, relay.ErrStopRequested) {
		glog.Info("relay stopped by client")
		return
	}
	if err != nil {
		glog.Errorf("relay: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
