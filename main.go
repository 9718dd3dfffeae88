package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"

	"parley/config"
	"parley/engine"
	"parley/model"
	"parley/provider"
	"parley/storage"
	"parley/toolhub"
	"parley/ui"
)

const Version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dataDir := cfg.DataDir()

	log, closeLog, err := newLogger(dataDir)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info("starting parley", "version", Version, "data_dir", dataDir)

	providerID := cfg.User.DefaultProvider
	settings := cfg.Provider(providerID)
	if settings == nil {
		return fmt.Errorf("default provider %q is not configured", providerID)
	}
	modelName := settings.Model
	if modelName == "" {
		modelName = cfg.User.DefaultModel
	}
	prov, err := provider.NewProvider(provider.Config{
		Type:    provider.MapProviderIDToType(providerID),
		BaseURL: settings.BaseURL,
		Model:   modelName,
		APIKey:  cfg.Credentials.Get(providerID),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize provider %s: %w", providerID, err)
	}

	hub := toolhub.NewHub(log)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	for _, srv := range cfg.User.ToolServers {
		if err := hub.Connect(connectCtx, srv); err != nil {
			// A dead tool server degrades the session, it doesn't block it.
			log.Warn("tool server unavailable", "server", srv.ID, "error", err)
		}
	}
	cancelConnect()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
	}()

	index, err := storage.NewSearchIndex(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer index.Close()

	store, err := storage.NewConversationStore(dataDir, index)
	if err != nil {
		return fmt.Errorf("failed to initialize conversation store: %w", err)
	}

	conv, err := resumeOrCreate(store, providerID, modelName)
	if err != nil {
		return err
	}

	controls := model.Controls{
		MaxTokens:      cfg.User.MaxTokens,
		Temperature:    cfg.User.Temperature,
		ThinkingEffort: cfg.User.ThinkingEffort,
	}
	if !model.Capabilities(model.ProviderKind(providerID)).SupportsReasoning {
		controls.ThinkingEffort = ""
	}
	optimizer := engine.WindowOptimizer{MaxChars: cfg.User.HistoryCharBudget}
	controller := engine.NewController(prov, hub, store, optimizer, controls, log)
	registry := engine.NewRegistry()
	titles := engine.NewTitleGenerator(prov)

	p := tea.NewProgram(
		ui.NewApp(prov, controller, registry, store, titles, conv),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run UI: %w", err)
	}

	return nil
}

// resumeOrCreate opens the most recent conversation, or starts a fresh one.
func resumeOrCreate(store *storage.ConversationStore, providerID, modelName string) (*storage.Conversation, error) {
	metas, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(metas) > 0 {
		conv, err := store.Load(metas[0].ID)
		if err == nil {
			return conv, nil
		}
	}
	conv, err := store.Create("New Conversation", providerID, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// newLogger writes tinted slog output to a file in the data directory.
// Logging to stderr would corrupt the alt-screen TUI.
func newLogger(dataDir string) (*slog.Logger, func(), error) {
	logPath := filepath.Join(dataDir, "parley.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := slog.LevelInfo
	if os.Getenv("PARLEY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(f, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}))
	return log, func() { f.Close() }, nil
}
