package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/Joseda-hg/lazytodo/internal/api"
	"github.com/Joseda-hg/lazytodo/internal/board"
	"github.com/Joseda-hg/lazytodo/internal/config"
	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/export"
	"github.com/Joseda-hg/lazytodo/internal/schedule"
	"github.com/Joseda-hg/lazytodo/internal/session"
	"github.com/Joseda-hg/lazytodo/internal/tui"
	"github.com/Joseda-hg/lazytodo/internal/web"
)

var (
	errNotSignedIn = errors.New("not signed in, run `lazytodo login` first")
	errLoginFailed = errors.New("Invalid email or password")
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite session db path")
	apiFlag := flag.String("api", "", "API base URL")
	webFlag := flag.Bool("web", false, "serve the web dashboard alongside the TUI")
	portFlag := flag.Int("port", 0, "web dashboard port")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig(cfgPath, overrides{
		dbPath: *dbPathFlag,
		apiURL: *apiFlag,
		web:    *webFlag,
		port:   *portFlag,
	})
	if err != nil {
		log.Fatal(err)
	}

	command := "tui"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	switch command {
	case "tui":
		err = runTUI(cfg)
	case "login":
		err = runLogin(cfg, args)
	case "logout":
		err = runLogout(cfg)
	case "export":
		err = runExport(cfg, args)
	case "web":
		err = runWeb(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

// overrides are the command-line values that win over file and environment.
type overrides struct {
	dbPath string
	apiURL string
	web    bool
	port   int
}

// loadConfig writes back only what came from the file plus the derived
// paths. Environment and flag values apply to this run alone.
func loadConfig(cfgPath string, o overrides) (config.Config, error) {
	fileCfg, err := config.ReadFile(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if fileCfg.DBPath == "" {
		fileCfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "session.db")
	}
	if fileCfg.LogPath == "" {
		fileCfg.LogPath = filepath.Join(filepath.Dir(cfgPath), "lazytodo.log")
	}
	if err := config.Save(cfgPath, fileCfg); err != nil {
		return config.Config{}, err
	}

	cfg := fileCfg
	cfg.ApplyEnv()
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.apiURL != "" {
		cfg.APIURL = strings.TrimRight(o.apiURL, "/")
	}
	if o.web {
		cfg.WebEnabled = true
	}
	if o.port != 0 {
		cfg.WebPort = o.port
	}
	return cfg, nil
}

// app is everything a command needs to reach the API with the stored session.
type app struct {
	cfg     config.Config
	db      *sqlx.DB
	session *session.Session
	client  *api.Client
	board   *board.Board
	logger  *log.Logger
}

func openApp(cfg config.Config, logOutput io.Writer) (*app, error) {
	if err := config.EnsureDir(cfg.DBPath); err != nil {
		return nil, err
	}
	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	sess, err := session.Load(context.Background(), db.NewStore(sqlDB))
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger := log.New(logOutput, "", log.LstdFlags)
	client := api.New(cfg.APIURL, sess,
		api.WithTimeout(cfg.RequestTimeout.Duration),
		api.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		db:      sqlDB,
		session: sess,
		client:  client,
		board:   board.New(client),
		logger:  logger,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// signedIn runs the startup guard and loads the task list for commands that
// need a session but no UI.
func (a *app) signedIn(ctx context.Context) error {
	if session.Guard(ctx, a.session, a.client, time.Now()) != session.RouteTasks {
		return errNotSignedIn
	}
	return a.board.Load(ctx)
}

func runTUI(cfg config.Config) error {
	if err := config.EnsureDir(cfg.LogPath); err != nil {
		return err
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	// The terminal belongs to gocui from here on.
	log.SetOutput(logFile)

	a, err := openApp(cfg, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	route := session.Guard(context.Background(), a.session, a.client, time.Now())
	a.logger.Printf("[INFO] starting on the %s view", route)
	ui := tui.New(tui.Options{
		Auth:       a.client,
		Board:      a.board,
		Session:    a.session,
		Route:      route,
		ExportPath: export.DefaultFileName,
	})
	a.client.SetLogoutHook(ui.SessionExpired)

	scheduler := schedule.New(time.Local)
	if _, err := scheduler.OnDayChange(func(time.Time) { ui.DayChanged() }); err != nil {
		return err
	}
	if interval := cfg.SyncInterval.Duration; interval > 0 {
		if _, err := scheduler.Every(interval, ui.Resync); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.WebEnabled {
		srv := newWebServer(a)
		go func() {
			log.Printf("Web server running at http://%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("web server error: %v", err)
			}
		}()
		defer shutdown(srv)
	}

	return ui.Run()
}

func runWeb(cfg config.Config) error {
	a, err := openApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.signedIn(ctx); err != nil {
		return err
	}

	scheduler := schedule.New(time.Local)
	scheduler.Start()
	defer scheduler.Stop()
	if interval := cfg.SyncInterval.Duration; interval > 0 {
		id, err := scheduler.Every(interval, func() {
			if err := a.board.Load(ctx); err != nil {
				a.logger.Printf("[ERROR] resync: %v", err)
			}
		})
		if err != nil {
			return err
		}
		a.logger.Printf("[INFO] next resync at %s", scheduler.Next(id).Format(time.Kitchen))
	}

	srv := newWebServer(a)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Web server running at http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("Shutting down web server...")
		shutdown(srv)
		return nil
	}
}

func newWebServer(a *app) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", a.cfg.WebPort),
		Handler:           web.NewServer(a.board, a.session).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("web server shutdown: %v", err)
	}
}

func runLogin(cfg config.Config, args []string) error {
	loginFlags := flag.NewFlagSet("login", flag.ContinueOnError)
	username := loginFlags.String("u", "", "username")
	if err := loginFlags.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	if strings.TrimSpace(*username) == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		*username = strings.TrimSpace(line)
	}

	password, err := readPassword(reader)
	if err != nil {
		return err
	}

	a, err := openApp(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout.Duration)
	defer cancel()
	if err := a.login(ctx, strings.TrimSpace(*username), password); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", a.session.Username())
	return nil
}

// login hides the cause of a failed sign in; the detail only goes to the log.
func (a *app) login(ctx context.Context, username, password string) error {
	if err := a.client.Login(ctx, username, password); err != nil {
		a.logger.Printf("login: %v", err)
		return errLoginFailed
	}
	return nil
}

func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(password), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cfg config.Config) error {
	a, err := openApp(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.Logout(context.Background()); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runExport(cfg config.Config, args []string) error {
	exportFlags := flag.NewFlagSet("export", flag.ContinueOnError)
	output := exportFlags.String("o", export.DefaultFileName, "output file")
	if err := exportFlags.Parse(args); err != nil {
		return err
	}

	a, err := openApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.signedIn(context.Background()); err != nil {
		return err
	}
	tasks := a.board.Tasks()
	if err := export.WriteFile(*output, tasks); err != nil {
		return err
	}
	fmt.Printf("Exported %d tasks to %s\n", len(tasks), *output)
	return nil
}
