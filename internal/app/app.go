package app

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "0.3.0"
	UserAgent = "streaminsync/" + Version

	ConfigPath string
	Info       = map[string]any{
		"version": Version,
	}
)

func Init() {
	var confs flagConfig
	var daemon bool
	var version bool

	flag.Var(&confs, "config", "streaminsync config (path to file, raw text or key.path=value), support multiple")
	if runtime.GOOS != "windows" {
		flag.BoolVar(&daemon, "daemon", false, "Run program in background")
	}
	flag.BoolVar(&version, "version", false, "Print the version of the application and exit")
	flag.Parse()

	revision, vcsTime := readRevision()

	if version {
		fmt.Printf("streaminsync version %s%s %s %s/%s\n", Version, revision, vcsTime, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	if daemon {
		args := make([]string, 0, len(os.Args)-1)
		for _, arg := range os.Args[1:] {
			if arg != "-daemon" && arg != "--daemon" {
				args = append(args, arg)
			}
		}
		// Re-run the program in background and exit
		cmd := exec.Command(os.Args[0], args...)
		if err := cmd.Start(); err != nil {
			fmt.Println("daemon:", err)
			os.Exit(1)
		}
		fmt.Println("Running in daemon mode with PID:", cmd.Process.Pid)
		os.Exit(0)
	}

	initConfig(confs)
	initLogger()

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	Logger.Info().Str("version", Version).Str("platform", platform).Str("revision", revision).Msg("streaminsync")
	Logger.Debug().Str("version", runtime.Version()).Msg("build")

	if ConfigPath != "" {
		Logger.Info().Str("path", ConfigPath).Msg("config")
	}

	Info["revision"] = revision
}

func readRevision() (revision, vcsTime string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) > 7 {
				revision = "(" + setting.Value[:7] + ")"
			} else {
				revision = "(" + setting.Value + ")"
			}
		case "vcs.time":
			vcsTime = setting.Value
		}
	}
	return
}
