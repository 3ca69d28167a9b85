package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/logx"
	"github.com/bernerspace/relay/internal/masking"
	"github.com/bernerspace/relay/internal/server"
	"github.com/bernerspace/relay/internal/server/db"
	"github.com/bernerspace/relay/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	verbose := flag.Bool("verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error (or RELAY_LOG_LEVEL)")
	flag.BoolVar(showVersion, "v", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.String("relay-server"))
		fmt.Fprintf(os.Stderr, "Relay gateway authenticates agent callers, drives per-integration OAuth\n")
		fmt.Fprintf(os.Stderr, "flows and proxies tool invocations with stored credentials.\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  RELAY_JWT_SECRET     HS256 signing secret for caller tokens (min 16 chars, required)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_JWT_ISSUER     Expected issuer claim (default: bernerspace-ecosystem)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_JWT_AUDIENCE   Expected audience claim (default: relay-gateway)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_DB_PATH        SQLite database path (default: relay.db)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_LISTEN_ADDR    Listen address (default: :8080)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_BASE_URL       Public base URL for OAuth callbacks (default: http://localhost:<port>)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_STATE_TTL      Validity window for OAuth state tokens (default: 10m)\n")
		fmt.Fprintf(os.Stderr, "  RELAY_CORS_ORIGINS   Comma-separated allowed CORS origins\n")
		fmt.Fprintf(os.Stderr, "  RELAY_LOG_LEVEL      Log level: debug|info|warn|error (default: info)\n")
		fmt.Fprintf(os.Stderr, "  SLACK_CLIENT_ID      Slack OAuth client id (enables the slack integration)\n")
		fmt.Fprintf(os.Stderr, "  SLACK_CLIENT_SECRET  Slack OAuth client secret\n")
		fmt.Fprintf(os.Stderr, "  SLACK_REDIRECT_URI   Slack callback URL (default: <base-url>/slack/oauth/callback)\n")
		fmt.Fprintf(os.Stderr, "  SLACK_SCOPES         Comma-separated Slack scopes\n")
		fmt.Fprintf(os.Stderr, "  GOOGLE_CLIENT_ID     Google OAuth client id (enables the google integration)\n")
		fmt.Fprintf(os.Stderr, "  GOOGLE_CLIENT_SECRET Google OAuth client secret\n")
		fmt.Fprintf(os.Stderr, "  GOOGLE_REDIRECT_URI  Google callback URL (default: <base-url>/google/oauth/callback)\n")
		fmt.Fprintf(os.Stderr, "  GOOGLE_SCOPES        Comma-separated Google scopes\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("relay-server"))
		os.Exit(0)
	}

	if err := logx.Configure(*logLevel, *verbose); err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Route all leveled logs through the masking writer so configured
	// secrets never reach stderr in cleartext.
	masked := masking.NewWriter(os.Stderr, cfg.Secrets())
	logx.SetOutput(masked)
	defer masked.Flush()

	registry, err := integration.NewRegistry(cfg.Descriptors(), nil)
	if err != nil {
		log.Fatalf("build integration registry: %v", err)
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	r := server.NewRouter(store, registry, cfg)
	logx.Infof("server config: integrations=%v base_url=%s state_ttl=%s",
		registry.Names(), cfg.BaseURL, cfg.StateTTL)

	log.Printf("relay-server listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
