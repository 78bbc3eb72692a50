package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/script"
	"github.com/procscene/procscene/web"
)

func main() {
	var addr, scriptPath, profilePath, engineAddr, encoding string
	var seed int64
	var timeoutSec int
	var ui bool
	flag.StringVar(&scriptPath, "script", "", "Pipeline script to run")
	flag.StringVar(&profilePath, "profile", "", "Run profile yaml (placeholders take the positional arguments)")
	flag.StringVar(&engineAddr, "engine", "", "Host engine address, empty for a dry run")
	flag.Int64Var(&seed, "seed", 0, "Seed override, 0 keeps the profile value")
	flag.IntVar(&timeoutSec, "timeout", 0, "Engine call timeout in seconds, 0 keeps the profile value")
	flag.StringVar(&encoding, "encoding", "", "Legacy encoding of asset names, empty for Windows 1252")
	flag.BoolVar(&ui, "ui", false, "Serve the preview ui instead of running once")
	flag.StringVar(&addr, "i", ":8000", "Address of the preview ui server")
	flag.Parse()

	args := flag.Args()

	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatalf("Supported encodings: %v", config.ListEncodings())
		}
	}
	if profilePath != "" {
		profile, err := config.LoadProfile(profilePath, args)
		if err != nil {
			log.Fatal(err)
		}
		if err := profile.Apply(); err != nil {
			log.Fatal(err)
		}
		if engineAddr == "" {
			engineAddr = profile.Engine.Address
		}
		if timeoutSec == 0 {
			timeoutSec = profile.Engine.TimeoutSec
		}
	}
	if seed != 0 {
		config.SetSeed(seed)
	}

	newEngine := func() host.Engine {
		if engineAddr == "" {
			return host.NewDryRun()
		}
		return host.NewRemote(engineAddr, time.Duration(timeoutSec)*time.Second)
	}

	if ui {
		if err := web.StartServer(addr, newEngine, "web"); err != nil {
			log.Fatal(err)
		}
		return
	}

	if scriptPath == "" {
		flag.PrintDefaults()
		return
	}

	engine := newEngine()
	defer engine.Close()

	runner := script.NewRunner(context.Background(), engine, args)
	if err := runner.Run(scriptPath); err != nil {
		log.Fatal(err)
	}
}
