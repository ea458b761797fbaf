// Package interactive provides a command shell that drives the simulated
// radio by hand while a connection cycle is running.
package interactive

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Radio is the part of the simulated stack the shell controls.
type Radio interface {
	// Disconnect injects STA_DISCONNECTED with reason.
	Disconnect(reason wifi.Reason) error

	// GotIP injects STA_CONNECTED and STA_GOT_IP for addr.
	GotIP(addr netip.Addr) error

	// Attempts returns the number of connect attempts made.
	Attempts() int

	// Address returns the address currently leased to the station.
	Address() netip.Addr
}

// Shell handles interactive mode for tenderoni.
type Shell struct {
	radio Radio
	mgr   *wifi.Manager
	rl    *readline.Instance
	out   io.Writer
}

// New creates a shell reading from the terminal.
func New(radio Radio) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wifi> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("disconnect",
				readline.PcItem(wifi.ReasonAuthFail.String()),
				readline.PcItem(wifi.ReasonNoAPFound.String()),
				readline.PcItem(wifi.ReasonBeaconTimeout.String()),
				readline.PcItem(wifi.ReasonHandshakeTimeout.String()),
			),
			readline.PcItem("gotip"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{
		radio: radio,
		rl:    rl,
		out:   rl.Stdout(),
	}, nil
}

// SetManager lets the status command report on mgr.
func (s *Shell) SetManager(mgr *wifi.Manager) {
	s.mgr = mgr
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	defer s.rl.Close()

	// Closing readline unblocks a pending Readline call.
	stop := context.AfterFunc(ctx, func() { s.rl.Close() })
	defer stop()

	s.printHelp()

	for {

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}

		if !s.Exec(line) {
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "disconnect", "d":
		s.cmdDisconnect(args)

	case "gotip", "ip":
		s.cmdGotIP(args)

	case "status", "s":
		s.cmdStatus()

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) cmdDisconnect(args []string) {
	reason := wifi.ReasonAuthFail
	if len(args) > 0 {
		r, ok := wifi.ParseReason(strings.ToUpper(args[0]))
		if !ok {
			fmt.Fprintf(s.out, "Unknown reason: %s\n", args[0])
			return
		}
		reason = r
	}

	if err := s.radio.Disconnect(reason); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Posted STA_DISCONNECTED (%s)\n", reason)
}

func (s *Shell) cmdGotIP(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: gotip <address>")
		return
	}
	addr, err := netip.ParseAddr(args[0])
	if err != nil || !addr.Is4() {
		fmt.Fprintf(s.out, "Invalid IPv4 address: %s\n", args[0])
		return
	}

	if err := s.radio.GotIP(addr); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Posted STA_GOT_IP (%s)\n", addr)
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.out, "Connect attempts: %d\n", s.radio.Attempts())
	if addr := s.radio.Address(); addr.IsValid() {
		fmt.Fprintf(s.out, "Address:          %s\n", addr)
	} else {
		fmt.Fprintln(s.out, "Address:          none")
	}
	if s.mgr != nil {
		fmt.Fprintf(s.out, "Initialized:      %t\n", s.mgr.Initialized())
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  disconnect [reason]  Post STA_DISCONNECTED (default AUTH_FAIL)
  gotip <address>      Post STA_CONNECTED and STA_GOT_IP
  status               Show connect attempts and address
  help                 Show this help
  quit                 Leave the shell
`)
}
