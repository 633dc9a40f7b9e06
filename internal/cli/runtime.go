package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/todosync/internal/logging"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/state"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
)

var (
	errNotSignedIn    = errors.New("not signed in; run `todosync auth login`")
	errSessionExpired = errors.New("session expired; run `todosync auth login`")
)

// runtime is the wired client: config, diagnostic log, session manager and
// effect executor.
type runtime struct {
	cfg    *model.AppConfig
	logger *log.Logger
	mgr    *session.Manager
	sub    *session.Subscription
	exec   *appsync.Executor

	logFile io.Closer
}

// start loads the configuration and restores the persisted session. The
// subscription is taken before the session starts so InitialSession is
// never missed.
func (a *App) start(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := model.LoadConfig(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, logFile, err := logging.Open(cfg.Log)
	if err != nil {
		return nil, err
	}

	creds, err := a.openCredentials()
	if err != nil {
		logFile.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)
	mgr := session.New(remote.NewAuthAPI(client), creds, session.Options{
		RefreshMargin: time.Duration(cfg.Session.RefreshMarginSec) * time.Second,
		Logger:        logger,
	})
	sub := mgr.Subscribe()
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		logFile.Close()
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	todos := remote.NewTodoTable(client, mgr.AccessToken)
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		mgr:     mgr,
		sub:     sub,
		exec:    appsync.NewExecutor(mgr, todos, logger),
		logFile: logFile,
	}, nil
}

// Close stops the session manager and releases the log file.
func (r *runtime) Close() {
	r.mgr.Close()
	if err := r.logFile.Close(); err != nil {
		r.logger.Warn("closing log file", "err", err)
	}
}

func (r *runtime) initialState() state.State {
	return state.New(theme.Detect(r.cfg.Display.Theme))
}

// loadTodos signs the headless state in with the restored session and
// fetches the list.
func (r *runtime) loadTodos(ctx context.Context) (state.State, error) {
	sess := r.mgr.Current()
	if sess == nil {
		return state.State{}, errNotSignedIn
	}
	st, err := appsync.Drive(ctx, r.exec, r.initialState(), state.SessionChanged{Session: sess})
	if err != nil {
		return st, fmt.Errorf("fetching todos: %w", err)
	}
	if !st.LoggedIn() {
		return st, errSessionExpired
	}
	return st, nil
}

// apply drives intent against a loaded state and reports failures,
// including a session rejected along the way.
func (r *runtime) apply(ctx context.Context, st state.State, intent state.Intent) (state.State, error) {
	st, err := appsync.Drive(ctx, r.exec, st, intent)
	if err != nil {
		return st, errors.New(remote.Message(err))
	}
	if !st.LoggedIn() {
		return st, errSessionExpired
	}
	return st, nil
}
