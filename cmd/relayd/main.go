// relayd is the CLI entrypoint: a serve subcommand plus operator
// subcommands that open the same AccessLists database and call the same
// core.Server methods the running process would use (spec.md §4.15).
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/addons"
	"scenerelay/internal/core"
	"scenerelay/internal/eventbus"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport"
	"scenerelay/logging"
	"scenerelay/logging/sinks"
	"scenerelay/telemetry"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "authorize-key":
		cmdAuthorizeKey(os.Args[2:])
	case "ban":
		cmdBan(os.Args[2:])
	case "whitelist":
		cmdWhitelist(os.Args[2:])
	case "kick", "list", "announce":
		fmt.Fprintf(os.Stderr, "%s requires a running server; connect relayd to it over the admin socket once one is configured\n", os.Args[1])
		os.Exit(1)
	case "version":
		fmt.Printf("relayd %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: relayd <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [--port N] [--config path] [--db path]   Start the relay server")
	fmt.Println("  authorize-key --label L <authKey>               Issue a CommandBus authorized key")
	fmt.Println("  ban [--reason R] <remoteAddr-or-authKey>        Ban a remote address or authKey")
	fmt.Println("  whitelist <authKey>                             Whitelist an authKey directly")
	fmt.Println("  version                                         Show version")
	fmt.Println("  help                                             Show this help")
	fmt.Println()
	fmt.Println("kick/list/announce operate against a running server's admin socket, not")
	fmt.Println("yet wired in this build; see core.Server for the methods they would call.")
}

const (
	defaultPort   = 9443
	defaultDBPath = "relayd.db"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", defaultPort, "websocket listen port")
	configPath := fs.String("config", "", "path to settings.yaml (optional; defaults used if absent)")
	dbPath := fs.String("db", defaultDBPath, "path to the AccessLists bbolt database")
	logJSONPath := fs.String("log-json", "", "path to a newline-delimited JSON log file (optional)")
	fs.Parse(args)

	cfg := settings.Default()
	if *configPath != "" {
		loaded, err := settings.Load(*configPath)
		if err != nil {
			log.Fatalf("load settings: %v", err)
		}
		cfg = loaded
	}

	lists, err := accesslists.Open(*dbPath)
	if err != nil {
		log.Fatalf("open accesslists db %s: %v", *dbPath, err)
	}
	defer lists.Close()

	registry := addons.New(cfg.NetworkedAddons)
	bus := eventbus.New(telemetry.WrapLogger(log.New(os.Stderr, "[eventbus] ", log.LstdFlags)))
	pub := buildPublisher(*logJSONPath)

	wsLogger := log.New(os.Stderr, "[transport] ", log.LstdFlags)
	allocator := &session.IDAllocator{}
	tr := transport.NewWebSocketTransport(wsLogger, allocator.Next)

	settingsValue := cfg
	server := core.New(core.Dependencies{
		Lists:     lists,
		Registry:  registry,
		Bus:       bus,
		Publisher: pub,
		Settings:  func() settings.Settings { return settingsValue },
		Transport: tr,
	})

	if err := server.Start(*port); err != nil {
		log.Fatalf("start server on port %d: %v", *port, err)
	}
	log.Printf("relayd %s listening on :%d (db=%s)", version, *port, *dbPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")
	if err := server.Stop(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildPublisher wires the console sink (colored if stdout is a terminal)
// and, if logJSONPath is set, the rotating JSON sink, fanned out through a
// logging.Router (spec.md §4.14).
func buildPublisher(logJSONPath string) logging.Publisher {
	cfg := logging.DefaultConfig()
	namedSinks := map[string]logging.Sink{
		"console": sinks.NewConsole(os.Stdout, logging.ConsoleConfig{UseColor: term.IsTerminal(int(os.Stdout.Fd()))}),
	}
	if logJSONPath != "" {
		cfg.EnabledSinks = append(cfg.EnabledSinks, "json")
		jsonSink, err := sinks.NewJSON(logJSONPath, cfg.JSON)
		if err != nil {
			log.Printf("warning: failed to open json log sink at %s: %v", logJSONPath, err)
		} else {
			namedSinks["json"] = jsonSink
		}
	}
	router, err := logging.NewRouter(cfg, logging.SystemClock{}, log.New(os.Stderr, "[logging] ", log.LstdFlags), namedSinks)
	if err != nil {
		log.Printf("warning: failed to start logging router, falling back to no-op: %v", err)
		return logging.NopPublisher()
	}
	return router
}

func cmdAuthorizeKey(args []string) {
	fs := flag.NewFlagSet("authorize-key", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "path to the AccessLists bbolt database")
	label := fs.String("label", "", "operator label for this key (e.g. the issuing admin's name)")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 1 || *label == "" {
		fmt.Fprintln(os.Stderr, "usage: relayd authorize-key --label L <authKey>")
		os.Exit(1)
	}

	lists, err := accesslists.Open(*dbPath)
	if err != nil {
		log.Fatalf("open accesslists db %s: %v", *dbPath, err)
	}
	defer lists.Close()

	if err := lists.AddAuthorizedKey(*label, remaining[0]); err != nil {
		log.Fatalf("authorize key: %v", err)
	}
	fmt.Printf("authorized key labeled %q\n", *label)
}

func cmdBan(args []string) {
	fs := flag.NewFlagSet("ban", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "path to the AccessLists bbolt database")
	reason := fs.String("reason", "", "ban reason recorded alongside the entry")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 1 {
		fmt.Fprintln(os.Stderr, "usage: relayd ban [--reason R] <remoteAddr-or-authKey>")
		os.Exit(1)
	}

	lists, err := accesslists.Open(*dbPath)
	if err != nil {
		log.Fatalf("open accesslists db %s: %v", *dbPath, err)
	}
	defer lists.Close()

	if err := lists.Ban(remaining[0], *reason); err != nil {
		log.Fatalf("ban: %v", err)
	}
	fmt.Printf("banned %q\n", remaining[0])
}

func cmdWhitelist(args []string) {
	fs := flag.NewFlagSet("whitelist", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "path to the AccessLists bbolt database")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 1 {
		fmt.Fprintln(os.Stderr, "usage: relayd whitelist <authKey>")
		os.Exit(1)
	}

	lists, err := accesslists.Open(*dbPath)
	if err != nil {
		log.Fatalf("open accesslists db %s: %v", *dbPath, err)
	}
	defer lists.Close()

	if err := lists.AddToWhitelist(remaining[0]); err != nil {
		log.Fatalf("whitelist: %v", err)
	}
	fmt.Printf("whitelisted %q\n", remaining[0])
}
