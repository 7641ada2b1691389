package broadcast

import (
	"log/slog"
	"os/exec"
	"strconv"
)

// Relay supervises the external relay process that re-serves the live feed
// to plain TCP consumers.
type Relay struct {
	cmd *exec.Cmd
}

// StartRelay launches the shiftledger-relay helper pointed at the local
// websocket port. The relay is optional tooling: if the binary is missing
// or fails to start, the feed still works and this returns nil.
func StartRelay(wsPort, relayPort int, exposeAll bool) *Relay {
	args := []string{strconv.Itoa(wsPort), strconv.Itoa(relayPort)}
	if exposeAll {
		args = append(args, "--expose")
	}

	cmd := exec.Command("shiftledger-relay", args...)
	if err := cmd.Start(); err != nil {
		slog.Warn("relay not started, continuing without it", "error", err)
		return nil
	}

	slog.Info("relay started", "pid", cmd.Process.Pid,
		"ws_port", wsPort, "relay_port", relayPort, "expose_all", exposeAll)
	return &Relay{cmd: cmd}
}

// Stop terminates the relay process. Safe on a nil Relay.
func (r *Relay) Stop() {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return
	}
	if err := r.cmd.Process.Kill(); err != nil {
		slog.Warn("relay kill failed", "error", err)
	}
	_ = r.cmd.Wait()
	slog.Info("relay stopped")
}
