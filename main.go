package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/lehigh-university-libraries/labelme2coco/cmd"
)

// version is stamped by release builds: -ldflags "-X main.version=v1.2.3"
var version = ""

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := fang.Execute(
		context.Background(),
		cmd.NewRootCmd(),
		fang.WithVersion(buildVersion()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
