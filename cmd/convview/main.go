package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ajramos/convview/internal/config"
	"github.com/ajramos/convview/internal/db"
	"github.com/ajramos/convview/internal/tui"
	"github.com/ajramos/convview/internal/version"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/convview/config.json)")
	dbPathFlag := flag.String("db", "", "Path to the conversation database (default: ~/.config/convview/conversations.db)")
	importFlag := flag.String("import", "", "Import an mbox file, one conversation per thread")
	listFlag := flag.Bool("list", false, "List stored conversations and exit")
	conversationFlag := flag.String("conversation", "", "Conversation to open (default: most recent)")
	dumpFlag := flag.Bool("dump", false, "Load the conversation without a terminal and print its geometry as JSON")
	initFlag := flag.Bool("init", false, "Write the default configuration file and exit")
	debugFlag := flag.Bool("debug", false, "Log to stderr in non-interactive modes")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s --import inbox.mbox      # Store every thread of an mbox file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --list                   # Show stored conversations\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --conversation <id>      # Inspect one conversation\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --conversation <id> --dump\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  CONVVIEW_CONFIG  Override default config file path\n")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := getConfigPath(*configPathFlag)
	if *initFlag {
		if err := writeDefaultConfig(configPath); err != nil {
			log.Fatalf("Could not write configuration: %v", err)
		}
		fmt.Printf("Created configuration file: %s\n", configPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: could not load configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if *dbPathFlag != "" {
		cfg.DatabasePath = *dbPathFlag
	}

	interactive := *importFlag == "" && !*listFlag && !*dumpFlag
	logger, closeLog := newLogger(cfg, *debugFlag, interactive)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := db.Open(ctx, cfg.ResolvedDatabasePath())
	if err != nil {
		log.Fatalf("Could not open database: %v", err)
	}
	defer func() { _ = store.Close() }()
	conversations := db.NewConversationStore(store)

	conv, err := config.LoadConventions(cfg.ResolvedConventionsFile())
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	if *importFlag != "" {
		f, err := os.Open(*importFlag)
		if err != nil {
			log.Fatalf("Could not open mbox: %v", err)
		}
		res, err := importMbox(ctx, conversations, f, conv.QuotedTextClass, logger)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %d messages into %d conversations (%d skipped)\n", res.Messages, len(res.Conversations), res.Skipped)
		if !*listFlag && !*dumpFlag {
			return
		}
	}

	if *listFlag {
		if err := listConversations(ctx, conversations, os.Stdout); err != nil {
			log.Fatalf("Could not list conversations: %v", err)
		}
		return
	}

	conversationID, err := pickConversation(ctx, conversations, *conversationFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	s := newSession(cfg, conv, store, logger)
	defer s.Close()

	if *dumpFlag {
		if err := dump(ctx, s, conversationID, os.Stdout); err != nil {
			log.Fatalf("Dump failed: %v", err)
		}
		return
	}

	app := tui.NewApp(cfg, s.harness, s.bridge, logger)
	if err := app.Run(conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path: the CLI flag wins over CONVVIEW_CONFIG
// and the default path
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return expandPath(flagValue)
	}
	return config.DefaultConfigPath()
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.DefaultConfig().SaveConfig(path)
}

// newLogger returns the process logger. The interactive inspector owns the terminal, so it
// only logs to a file; other modes log to stderr when debug is set.
func newLogger(cfg *config.Config, debug, interactive bool) (*log.Logger, func()) {
	if cfg.LogFile != "" {
		path := expandPath(cfg.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				return log.New(f, "[convview] ", log.LstdFlags|log.Lmicroseconds), func() { _ = f.Close() }
			}
		}
	}
	if interactive {
		// the inspector opens its default log file
		return nil, func() {}
	}
	if debug {
		return log.New(os.Stderr, "[convview] ", log.LstdFlags|log.Lmicroseconds), func() {}
	}
	return log.New(io.Discard, "", 0), func() {}
}

func pickConversation(ctx context.Context, store *db.ConversationStore, id string) (string, error) {
	if id != "" {
		if _, err := store.GetConversation(ctx, id); err != nil {
			return "", fmt.Errorf("conversation %s: %w", id, err)
		}
		return id, nil
	}
	convs, err := store.ListConversations(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return "", fmt.Errorf("no conversations stored; import one with --import")
	}
	return convs[0].ID, nil
}

func listConversations(ctx context.Context, store *db.ConversationStore, w io.Writer) error {
	convs, err := store.ListConversations(ctx, 0)
	if err != nil {
		return err
	}
	for _, c := range convs {
		fmt.Fprintf(w, "%s  %3d  %s  %s\n", c.ID, c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.Subject)
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
