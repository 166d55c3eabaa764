package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/picnicd/picnic/internal/archive"
	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/ics"
	"github.com/picnicd/picnic/internal/learn"
	mcpserver "github.com/picnicd/picnic/internal/mcp"
	"github.com/picnicd/picnic/internal/oracle"
	"github.com/picnicd/picnic/internal/pipeline"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "parse":
		err = runParse(os.Args[2:])
	case "ics":
		err = runICS(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "cleanup":
		err = runCleanup(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("picnic %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMCP(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	store := learn.Open(cfg.StorePath, cfg)
	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()

	runner, err := pipeline.New(cfg, oracle.NewChatClient(cfg.Oracle), store, arch, nil)
	if err != nil {
		return err
	}

	s := mcpserver.NewServer(mcpserver.ServerConfig{
		Runner:  runner,
		Store:   store,
		Archive: arch,
		Version: version,
	})
	return server.ServeStdio(s)
}

func runICS(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}

	opts := archive.ListOpts{}
	output := ""
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--since":
			if i++; i >= len(rest) {
				return fmt.Errorf("--since requires a value")
			}
			opts.Since = rest[i]
		case "--until":
			if i++; i >= len(rest) {
				return fmt.Errorf("--until requires a value")
			}
			opts.Until = rest[i]
		case "--output", "-o":
			if i++; i >= len(rest) {
				return fmt.Errorf("--output requires a value")
			}
			output = rest[i]
		case "--upcoming":
			opts.Since = time.Now().Format("2006-01-02")
			opts.Until = time.Now().AddDate(0, 0, cfg.EventWindowDays).Format("2006-01-02")
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}

	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()

	events, err := arch.List(context.Background(), opts)
	if err != nil {
		return err
	}

	calendar := ics.Generate(events, time.Now())
	if output == "" {
		fmt.Println(calendar)
		return nil
	}
	if err := os.WriteFile(output, []byte(calendar+"\r\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Printf("Wrote %d event(s) to %s\n", len(events), output)
	return nil
}

func runStats(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	store := learn.Open(cfg.StorePath, cfg)
	if store.LoadWarning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", store.LoadWarning)
	}
	st := store.Stats()

	fmt.Printf("Learned aliases:  %d (high %d, medium %d, low %d)\n",
		st.LearnedAliases, st.HighConfidenceAliases, st.MediumConfidenceAliases, st.LowConfidenceAliases)
	fmt.Printf("Cached responses: %d\n", st.CacheEntries)
	fmt.Printf("Dedup entries:    %d\n", st.DedupEntries)

	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()
	n, err := arch.Count(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Archived events:  %d\n", n)
	return nil
}

func runCleanup(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}

	days := 30
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--days":
			if i++; i >= len(rest) {
				return fmt.Errorf("--days requires a value")
			}
			n, err := strconv.Atoi(rest[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("--days must be a positive integer, got %q", rest[i])
			}
			days = n
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}

	store := learn.Open(cfg.StorePath, cfg)
	cacheRemoved, dedupRemoved, err := store.Cleanup(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached response(s) and %d dedup entrie(s) older than %d days\n",
		cacheRemoved, dedupRemoved, days)
	return nil
}

// loadConfig peels --config off the argument list and returns the effective
// configuration plus the remaining arguments.
func loadConfig(args []string) (config.Config, []string, error) {
	path := os.Getenv("PICNIC_CONFIG")
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i++; i >= len(args) {
				return config.Config{}, nil, fmt.Errorf("--config requires a value")
			}
			path = args[i]
			continue
		}
		if strings.HasPrefix(args[i], "--config=") {
			path = strings.TrimPrefix(args[i], "--config=")
			continue
		}
		rest = append(rest, args[i])
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, rest, nil
}

func printUsage() {
	fmt.Printf(`picnic %s — Event extraction from mailing-list email

Usage:
  picnic <command> [arguments]

Commands:
  parse --input <file>   Run a batch of emails through the extraction pipeline
  ics                    Render archived events as an iCalendar file
  serve                  Serve events, calendar, health, and metrics over HTTP
  mcp                    Run the MCP server on stdio
  stats                  Show learning-store and archive statistics
  cleanup                Expire old cached responses and dedup entries
  version                Print version

Parse Flags:
  --input <file>         JSON array of emails ('-' for stdin)
  --json                 Print accepted events as JSON on stdout
  --dry-run              Do not write the archive or learning store

ICS Flags:
  --since / --until      Date range (YYYY-MM-DD)
  --upcoming             Events starting within the configured window
  -o, --output <file>    Write to a file instead of stdout

Serve Flags:
  --addr <host:port>     Listen address (default :8080)

Cleanup Flags:
  --days <n>             Expire entries older than n days (default 30)

Flags:
  -c, --config <file>    Config file (default $PICNIC_CONFIG)
  -h, --help             Show this help message
  -v, --version          Print version
`, version)
}
