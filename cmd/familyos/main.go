// familyos is a terminal client for a FamilyOS server: sign in, pick the
// active family, follow the family chat live, and work the shared shopping
// and task lists.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dukerupert/familyos/internal/database"
	"github.com/dukerupert/familyos/internal/family"
	"github.com/dukerupert/familyos/internal/logging"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/remote"
	"github.com/dukerupert/familyos/internal/store"
)

const defaultServerURL = "http://localhost:8080"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var serverURL, statePath, logLevel string

	global := pflag.NewFlagSet("familyos", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVar(&serverURL, "url", os.Getenv("FAMILYOS_URL"), "server base URL")
	global.StringVar(&statePath, "state", os.Getenv("FAMILYOS_STATE"), "path to the local state database")
	global.StringVar(&logLevel, "log-level", envOr("FAMILYOS_LOG_LEVEL", "warn"), "log level: debug, info, warn, error")
	global.BoolP("help", "h", false, "show help")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, global)
			return nil
		}
		return err
	}
	if help, _ := global.GetBool("help"); help || global.NArg() == 0 {
		printHelp(stdout, global)
		return nil
	}

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		printHelp(os.Stderr, global)
		return fmt.Errorf("unknown command %q", name)
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if cmd.Flags != nil {
		cmd.Flags(flags)
	}
	if err := flags.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "Usage: familyos %s\n\n%s\n\n%s", cmd.Usage, cmd.Summary, flags.FlagUsages())
			return nil
		}
		return err
	}
	if flags.NArg() < cmd.MinArgs {
		fmt.Fprintf(os.Stderr, "Usage: familyos %s\n", cmd.Usage)
		return errUsage
	}

	a, err := newApp(ctx, serverURL, statePath, logLevel, stdin, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd.Run(ctx, a, flags.Args())
}

func printHelp(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintf(w, "familyos: the FamilyOS terminal client\n\nUsage:\n  familyos [global flags] <command> [flags] [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", n, commands[n].Summary)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n%s", global.FlagUsages())
}

// app is the state one command invocation works with.
type app struct {
	prefs     *store.PrefsStore
	client    *remote.Client
	resolver  *family.Resolver
	serverURL string
	logger    *slog.Logger
	in        *bufio.Reader
	out       io.Writer
	closeDB   func() error
}

func newApp(ctx context.Context, serverURL, statePath, logLevel string, in io.Reader, out io.Writer) (*app, error) {
	logger := logging.Setup(logLevel)

	if statePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		statePath = filepath.Join(dir, "familyos", "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := database.OpenLocal(statePath)
	if err != nil {
		return nil, err
	}
	prefs := store.NewPrefsStore(db)

	if serverURL == "" {
		saved, _, err := prefs.Get(ctx, store.PrefServerURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		serverURL = saved
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	token, _, err := prefs.Get(ctx, store.PrefSessionToken)
	if err != nil {
		db.Close()
		return nil, err
	}
	client := remote.New(serverURL, remote.WithToken(token))

	return &app{
		prefs:     prefs,
		client:    client,
		resolver:  family.NewResolver(client, prefs, logger.With("component", "resolver")),
		serverURL: serverURL,
		logger:    logger,
		in:        bufio.NewReader(in),
		out:       out,
		closeDB:   db.Close,
	}, nil
}

func (a *app) close() {
	if err := a.closeDB(); err != nil {
		a.logger.Debug("close state db", "error", err)
	}
}

// signedIn resolves the session's user and the active family.
func (a *app) signedIn(ctx context.Context) (*model.User, error) {
	if a.client.Token() == "" {
		return nil, errors.New("not signed in; run 'familyos login' first")
	}
	me, err := a.client.Me(ctx)
	if errors.Is(err, remote.ErrUnauthorized) {
		return nil, errors.New("session expired; run 'familyos login' again")
	}
	if err != nil {
		return nil, err
	}
	if err := a.resolver.Load(ctx); err != nil {
		return nil, err
	}
	if err := a.resolver.SetIdentity(ctx, me.ID); err != nil {
		return nil, err
	}
	return me, nil
}

// activeMember returns the caller's membership in the active family.
func (a *app) activeMember(ctx context.Context) (model.Membership, error) {
	if _, err := a.signedIn(ctx); err != nil {
		return model.Membership{}, err
	}
	m, ok := a.resolver.Active()
	if !ok {
		return model.Membership{}, errors.New("no active family; create one or accept an invitation")
	}
	return m, nil
}

// saveSession persists the client's token and server.
func (a *app) saveSession(ctx context.Context) error {
	if err := a.prefs.Set(ctx, store.PrefSessionToken, a.client.Token()); err != nil {
		return err
	}
	return a.prefs.Set(ctx, store.PrefServerURL, a.serverURL)
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
