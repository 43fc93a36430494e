// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli is the main entrypoint for lockctl.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/locks/lockctl/cmd"
	"gvisor.dev/locks/pkg/log"
)

var (
	logPattern = flag.String("log", "", "file to write logs to, may contain %COMMAND%, %TIMESTAMP% and %PID%. Logs are discarded if empty.")
	logFormat  = flag.String("log-format", "text", "log format: text (default) or json.")
	debug      = flag.Bool("debug", false, "enable debug logging.")
	logStderr  = flag.Bool("alsologtostderr", false, "send log messages to stderr as well.")
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	subcommand := flag.CommandLine.Arg(0)
	if *debug {
		log.SetLevel(log.Debug)
	}

	var emitters log.MultiEmitter
	f, err := log.OpenFile(*logPattern, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.Substitutions{
		"%COMMAND%":   subcommand,
		"%TIMESTAMP%": time.Now().Format("20060102-150405.000000"),
		"%PID%":       strconv.Itoa(os.Getpid()),
	})
	if err != nil {
		cmd.Errorf("error opening log file %q: %v", *logPattern, err)
		os.Exit(128)
	}
	if f != nil {
		emitters = append(emitters, newEmitter(*logFormat, f))
	} else {
		emitters = append(emitters, newEmitter("text", io.Discard))
	}
	if *logStderr {
		emitters = append(emitters, newEmitter(*logFormat, os.Stderr))
	}
	if len(emitters) == 1 {
		log.SetTarget(emitters[0])
	} else {
		log.SetTarget(&emitters)
	}

	const delimString = `*************** lockctl ***************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d, UID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid(), os.Getuid())
	log.Infof("Args: %v", os.Args)
	log.Infof(delimString)

	subcmdCode := subcommands.Execute(context.Background())
	if subcmdCode == subcommands.ExitSuccess {
		log.Infof("Exiting with status: %v", subcmdCode)
		os.Exit(0)
	}
	log.Warningf("Failure to execute command, err: %v", subcmdCode)
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// lockctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Hold), "")
	cb(new(cmd.Stress), "")

	const metricGroup = "metrics"
	cb(new(cmd.Metrics), metricGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	cmd.Errorf("invalid log format %q, must be 'text' or 'json'", format)
	os.Exit(128)
	panic("unreachable")
}
