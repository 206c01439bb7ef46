package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/client/api"
	"github.com/dmitrijs2005/idkeeper/internal/client/config"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Backend is the subset of *api.Client the commands use.
type Backend interface {
	SignUp(ctx context.Context, name, email, password string) (api.Account, bool, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	VerifyMfa(ctx context.Context, email, code string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
	Me(ctx context.Context) (api.Account, error)
	UpdateMe(ctx context.Context, p api.ProfilePatch) (api.Account, error)
	Users(ctx context.Context) ([]api.Account, error)
	DeleteUser(ctx context.Context, id string) error
	Health(ctx context.Context) (api.Health, error)
	SetToken(t string)
	Token() string
}

type App struct {
	config   *config.Config
	backend  Backend
	reader   *bufio.Reader
	out      io.Writer
	userName string

	mu   sync.Mutex
	Mode Mode
}

func NewApp(c *config.Config) (*App, error) {
	client, err := api.New(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &App{config: c, backend: client, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) isLoggedIn() bool {
	return a.backend != nil && a.backend.Token() != ""
}

// Run starts the watcher and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Println("Welcome to idkeeper CLI (type 'help' for commands)")

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := a.backend.Health(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher polls the health endpoint every interval until
// ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if m := a.mode(); m != "" {
		s = s + string(m)
	}
	return s
}
