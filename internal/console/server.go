package console

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"

	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/logging"
)

// Server is the SSH transport for the operator console, adapted from
// the teacher's internal/sshserver.Server: a gliderlabs/ssh server
// configured with a host signer and a password handler, one session
// handler per connection. Unlike sshserver.BBSSession, a session here
// never wraps its Read with an interrupt channel: that wrapper exists
// to let a door program cancel a blocked terminal read out from under
// itself, a problem specific to multiplexing door I/O on a BBS
// session. A Bubble Tea program already owns the one reader for its
// session for its whole lifetime, so there is nothing to interrupt.
type Server struct {
	inner *ssh.Server
	cfg   config.ConsoleConfig
}

// NewServer builds the console's SSH server. If cfg.HostKeyPath is
// empty, an ephemeral in-memory host key is generated instead
// (convenient for local/dev use; operators who want a stable host key
// fingerprint across restarts should set HostKeyPath).
func NewServer(cfg config.ConsoleConfig, client *Client) (*Server, error) {
	signer, err := hostSigner(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("console: host key: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &ssh.Server{
		Addr:        addr,
		Version:     "tw2kbot-console",
		HostSigners: []ssh.Signer{signer},
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			return checkCredentials(cfg, ctx.User(), password)
		},
		Handler: func(s ssh.Session) {
			runConsoleSession(s, client)
		},
	}
	return &Server{inner: srv, cfg: cfg}, nil
}

// ListenAndServe binds and serves until the listener is closed.
func (s *Server) ListenAndServe() error {
	return s.inner.ListenAndServe()
}

// Serve runs the console's SSH server on an already-bound listener.
func (s *Server) Serve(l net.Listener) error {
	return s.inner.Serve(l)
}

// Close shuts down the server and every active session.
func (s *Server) Close() error {
	return s.inner.Close()
}

func checkCredentials(cfg config.ConsoleConfig, user, password string) bool {
	if cfg.OperatorUser == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.OperatorUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.OperatorPass)) == 1
	return userOK && passOK
}

func runConsoleSession(s ssh.Session, client *Client) {
	_, winCh, isPTY := s.Pty()
	if !isPTY {
		fmt.Fprintln(s, "tw2kbot console requires a pty")
		return
	}

	model := NewModel(client)
	program := tea.NewProgram(model,
		tea.WithInput(s),
		tea.WithOutput(s),
		tea.WithAltScreen(),
	)

	go func() {
		for win := range winCh {
			program.Send(tea.WindowSizeMsg{Width: win.Width, Height: win.Height})
		}
	}()

	if _, err := program.Run(); err != nil {
		logging.Error("console: session for %s ended: %v", s.User(), err)
	}
}

// hostSigner loads the console's SSH host key from path, following the
// same os.ReadFile-plus-ParsePrivateKey shape as sshserver.NewServer.
// An empty path generates a fresh ed25519 key for the process
// lifetime, so a dev operator doesn't need to provision one by hand.
func hostSigner(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral host key: %w", err)
		}
		return gossh.NewSignerFromSigner(priv)
	}

	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key %s: %w", path, err)
	}
	return gossh.ParsePrivateKey(keyBytes)
}
