package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/flip-racer/flipsim/internal/tui/app"
	"github.com/flip-racer/flipsim/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:5000/ws", "WebSocket URL of the flipsim server")
	token := flag.String("token", os.Getenv("FLIPSIM_AUTH_TOKEN"), "Auth token (if the server requires it)")
	pattern := flag.String("pattern", "2_consecutive_tails", "Pattern selected at startup")
	sessions := flag.Int("sessions", sim.DefaultSessions, "Number of sessions per run")
	maxFlips := flag.Int("max-flips", sim.DefaultMaxFlips, "Flip limit per session")
	debugLog := flag.String("debug-log", "", "Write client logs to this file")
	flag.Parse()

	// The terminal belongs to Bubble Tea; logs go to a file or nowhere.
	logger := logging.Discard()
	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = logging.NewLogger("debug", "text", f)
	}

	ws := client.NewWSClient(*wsURL, *token, logger)
	httpClient := client.NewHTTPClient(deriveHTTPBase(*wsURL), *token)

	m := app.New(ws, httpClient, app.Options{
		Pattern:  *pattern,
		Sessions: *sessions,
		MaxFlips: *maxFlips,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err := p.Run()
	ws.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:5000"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") || strings.HasPrefix(u.Scheme, "https") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
