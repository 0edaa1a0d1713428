package main

import (
	"github.com/robotalks/rovlink/pkg/cli/sh"
	"github.com/robotalks/rovlink/pkg/gamepad"

	_ "github.com/robotalks/rovlink/pkg/cli/cmds/gamepad"
)

//go-build: CGO_ENABLED=0

func init() {
	gamepad.SetupFlags()
}

func main() {
	sh.Main()
}
