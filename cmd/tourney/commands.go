package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tourney/internal/config"
	"github.com/DoyleJ11/tourney/internal/httpapi"
	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/peer"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/storage"
	"github.com/DoyleJ11/tourney/internal/syncengine"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

type commonFlags struct {
	name     string
	logLevel string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "display name (required)")
	fs.StringVar(&c.logLevel, "log-level", "error", "log level written to stderr")
}

func (c *commonFlags) logger() *zap.SugaredLogger {
	return logging.NewLogger(c.logLevel, true)
}

func runHost(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		common   commonFlags
		deck     string
		gameType string
		addr     string
	)
	fs := flag.NewFlagSet("host", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&deck, "deck", "", "JSON file with the questions (required)")
	fs.StringVar(&gameType, "type", "match", "game type: match, speak or type")
	fs.StringVar(&addr, "addr", ":8080", "address followers connect to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gt, questions, err := loadDeck(deck, gameType)
	if err != nil {
		return err
	}
	logger := common.logger()
	ctx = logging.WithLogger(ctx, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := hub.NewHub(ctx)
	srv := httpapi.NewServer(addr, httpapi.SetupRoutes(h, httpapi.Deps{Logger: logger}))
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	host, err := peer.NewHost(ctx, h, common.name, gt, questions)
	if err != nil {
		ln.Close()
		return err
	}

	pterm.DefaultHeader.Println("Hosting tournament " + host.Code())
	pterm.Info.Printfln("Followers join with: tourney join -url http://%s -code %s", ln.Addr(), host.Code())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})
	g.Go(func() error {
		defer cancel()
		go printEvents(gctx, host.Events())
		return play(gctx, syncengine.New(host, syncengine.WithLogger(logger)), common.name, true, stdout)
	})
	return g.Wait()
}

func runJoin(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		common commonFlags
		url    string
		code   string
	)
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&url, "url", "http://localhost:8080", "base URL of the host")
	fs.StringVar(&code, "code", "", "room code (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := common.logger()

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + url)
	f, err := peer.Dial(ctx, url, strings.ToUpper(code))
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Connected to room " + f.Code())

	go printEvents(ctx, f.Events())
	return play(ctx, syncengine.New(f, syncengine.WithLogger(logger)), common.name, false, stdout)
}

func openStore(ctx context.Context, logger *zap.SugaredLogger) (*replicated.Client, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return replicated.NewClient(backend.Store, replicated.WithLogger(logger)), backend.Close, nil
}

func runCreate(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		common   commonFlags
		deck     string
		gameType string
	)
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&deck, "deck", "", "JSON file with the questions (required)")
	fs.StringVar(&gameType, "type", "match", "game type: match, speak or type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gt, questions, err := loadDeck(deck, gameType)
	if err != nil {
		return err
	}
	logger := common.logger()
	client, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	s, err := client.Create(ctx, common.name, gt, questions)
	if err != nil {
		return err
	}
	pterm.DefaultHeader.Println("Created tournament " + s.ID)
	pterm.Info.Printfln("Others enter with: tourney enter -id %s", s.ID)
	return enter(ctx, client, s.ID, common.name, true, logger, stdout)
}

func runEnter(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		common commonFlags
		id     string
	)
	fs := flag.NewFlagSet("enter", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&id, "id", "", "tournament id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := common.logger()
	client, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return enter(ctx, client, id, common.name, false, logger, stdout)
}

func enter(ctx context.Context, client *replicated.Client, id, name string, creator bool, logger *zap.SugaredLogger, stdout io.Writer) error {
	session, err := client.Open(ctx, id)
	if err != nil {
		return err
	}
	return play(ctx, syncengine.New(session, syncengine.WithLogger(logger)), name, creator, stdout)
}

func runLobby(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		logLevel string
		limit    int
	)
	fs := flag.NewFlagSet("lobby", flag.ContinueOnError)
	fs.StringVar(&logLevel, "log-level", "error", "log level written to stderr")
	fs.IntVar(&limit, "limit", replicated.DefaultLobbyLimit, "how many tournaments to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeStore, err := openStore(ctx, logging.NewLogger(logLevel, true))
	if err != nil {
		return err
	}
	defer closeStore()

	states, err := client.ListWaiting(ctx, limit)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		pterm.Info.Println("No tournaments are waiting for players.")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(stdout).WithData(lobbyTable(states)).Render()
}

func loadDeck(path, gameType string) (tournament.GameType, []tournament.Question, error) {
	gt, err := tournament.ParseGameType(gameType)
	if err != nil {
		return "", nil, err
	}
	if path == "" {
		return "", nil, fmt.Errorf("%w: -deck is required", tournament.ErrValidation)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening deck: %w", err)
	}
	defer f.Close()
	questions, err := tournament.ParseQuestions(f)
	if err != nil {
		return "", nil, err
	}
	return gt, questions, nil
}
