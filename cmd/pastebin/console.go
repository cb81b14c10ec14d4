package main

import (
	"bufio"
	"io"
	"strings"

	"pastebin/svc/util"
)

const shutdownCommand = "shutdown"

// watchConsole reads commands from r until "shutdown" is typed, then calls
// onShutdown. End of input just stops watching, so a detached process keeps
// running.
func watchConsole(r io.Reader, onShutdown func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case strings.EqualFold(cmd, shutdownCommand):
			util.Info().Msg("shutdown requested from console")
			onShutdown()
			return
		default:
			util.Info().Str("command", cmd).Msg("unknown console command, type shutdown to stop")
		}
	}
	if err := scanner.Err(); err != nil {
		util.Warn().Err(err).Msg("console input failed")
	}
}
