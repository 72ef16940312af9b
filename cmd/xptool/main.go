// xptool is a CLI utility for reading, converting and writing X-Plane
// scenery assets.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/internal/config"
	"github.com/Faultbox/xplane-assets/internal/logger"
)

// errUsage marks a malformed command line; the command has already
// printed its usage line.
var errUsage = errors.New("usage")

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if h := args[0]; h == "help" || h == "-h" || h == "--help" {
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	session := logger.NewSession(logger.Log)
	logger.Sugar.Debugf("Config: %+v", cfg)

	err = run(args, cfg, session.Log, os.Stdout)
	if msg, ok := session.Summary(); ok {
		fmt.Fprintln(os.Stderr, msg)
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}

// run dispatches one command.
func run(args []string, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	command, rest := args[0], args[1:]
	switch command {
	case "info":
		return cmdInfo(rest, log, out)
	case "roundtrip", "rt":
		return cmdRoundtrip(rest, cfg, log, out)
	case "import":
		return cmdImport(rest, cfg, log, out)
	case "export":
		return cmdExport(rest, cfg, log, out)
	case "compose":
		return cmdCompose(rest, cfg, log, out)
	case "graph":
		return cmdGraph(rest, cfg, out)
	case "lights":
		return cmdLights(rest, out)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `xptool - X-Plane scenery asset utility

Usage:
  xptool [flags] <command> [options]

Commands:
  info <asset>                              Show what an asset file contains
  roundtrip <asset> [output]                Parse and rewrite an asset
  import <asset> <scene.yaml>               Add an asset to a scene document
  export [-lights manifest] <scene.yaml> <dir>
                                            Write every exported collection
  compose <normal> <metal> <rough> <out.png>
                                            Pack baked maps into an X-Plane normal texture
  graph <scene.yaml> <material>             Print the node graph of a material
  lights [manifest]                         List known light names

Flags:
  -config <file>    Config file (default ./xptool.yaml)
  -debug            Debug logging
  -no-backup        Overwrite files without a backup copy
  -precision <n>    Fractional digits for exported coordinates

Examples:
  xptool info objects/hangar.obj
  xptool roundtrip lines/taxi.lin /tmp/taxi.lin
  xptool -no-backup export project.yaml out/
  xptool compose NML.png METAL.png ROUGH.png hangar_NML.png`)
}

func usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: xptool "+line)
	return errUsage
}
