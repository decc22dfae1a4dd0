package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/analysis"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/capture"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/config"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/ipc"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/monitor"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/monitor/x11"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/privacy"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/schedule"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/storage"

	sqlitestore "github.com/MatthewHA233/solo-leveling-system-sub001/internal/storage/sqlite"
)

type App struct {
	cfg     *config.Config
	storage storage.Storage
	source  *x11.Source
	mon     *monitor.Monitor
	orch    *capture.Orchestrator
	client  *analysis.Client
	batcher *analysis.Batcher

	// privacyCfg is swapped atomically on config-file changes so the capture
	// loop always reads a consistent exclusion list.
	privacyCfg atomic.Pointer[privacy.Config]

	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener

	eventChan chan event.Event

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	statusMutex    sync.RWMutex
	cardsGenerated int
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		eventChan:  make(chan event.Event, 100),
		socketPath: ipc.SocketPath,
		ctx:        ctx,
		cancel:     cancel,
	}

	pc := privacyFromConfig(cfg.Privacy)
	a.privacyCfg.Store(&pc)

	// Initialize Storage
	a.storage = sqlitestore.NewSQLiteStore(cfg.DatabasePath)
	if err := a.storage.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize X11 monitor source
	var srcErr error
	a.source, srcErr = x11.New()
	if srcErr != nil {
		logrus.Warnf("Failed to initialize X11 source: %v. Window monitoring disabled.", srcErr)
		a.source = nil
	}

	if a.source != nil {
		a.mon = monitor.New(a.source, cfg.Monitor.PollInterval(), cfg.Monitor.SwitchDebounce())
		a.mon.SetEventOutput(a.eventChan)
	}

	// Initialize AI analysis client. An unconfigured client is fine: calls
	// short-circuit without network I/O.
	client, err := analysis.NewClient(analysis.Config{
		Provider:        cfg.AI.Provider,
		APIKey:          cfg.AI.APIKey,
		APIBase:         cfg.AI.APIBase,
		Model:           cfg.AI.Model,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		HeaderTimeout:   time.Duration(cfg.AI.HeaderTimeoutSeconds) * time.Second,
		RequestTimeout:  time.Duration(cfg.AI.RequestTimeoutSeconds) * time.Second,
	})
	if err != nil {
		cancel()
		a.storage.Close()
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}
	a.client = client

	a.batcher = analysis.NewBatcher(
		a.client,
		cfg.AI.BatchSize,
		time.Duration(cfg.AI.BatchIntervalSeconds)*time.Second,
		cfg.MainQuest,
		cfg.AI.CardContextWindowCards,
		a.persistCards,
	)

	if a.mon != nil {
		cadence := schedule.Cadence{
			ActiveInterval:    cfg.Cadence.ActiveInterval(),
			IdleInterval:      cfg.Cadence.IdleInterval(),
			DeepIdleInterval:  cfg.Cadence.DeepIdleInterval(),
			IdleThreshold:     cfg.Cadence.IdleThreshold(),
			DeepIdleThreshold: cfg.Cadence.DeepIdleThreshold(),
			SwitchDelay:       cfg.Cadence.SwitchDelay(),
		}
		grabber := &capture.CommandGrabber{
			Argv:   cfg.Capture.Command,
			MIME:   cfg.Capture.MIME,
			Lister: a.source,
		}
		a.orch = capture.NewOrchestrator(a.mon, grabber, a.batcher, cadence, func() privacy.Config {
			return *a.privacyCfg.Load()
		}, a.storage)
	}

	return a, nil
}

func privacyFromConfig(pc config.PrivacyConfig) privacy.Config {
	return privacy.Config{
		ExcludedApps:  pc.ExcludedApps,
		TitleKeywords: pc.ExcludedTitleKeywords,
		MaxWidth:      pc.MaxWidth,
		JPEGQuality:   pc.JPEGQuality,
	}
}

// persistCards stores a batch of generated cards and records the analysis
// event. Invoked from the batcher's goroutine.
func (a *App) persistCards(ctx context.Context, cards []event.ActivityCard) {
	for _, c := range cards {
		if err := a.storage.SaveCard(ctx, c); err != nil {
			logrus.Warnf("Failed to save card '%s': %v", c.Title, err)
		}
	}
	if err := a.storage.TrimCards(ctx, a.cfg.MaxStoredCards); err != nil {
		logrus.Warnf("Failed to trim stored cards: %v", err)
	}

	a.statusMutex.Lock()
	a.cardsGenerated += len(cards)
	a.statusMutex.Unlock()

	e := event.Event{
		Timestamp: time.Now(),
		Type:      event.EventTypeAnalysis,
		Value:     float64(len(cards)),
		Notes:     fmt.Sprintf("%d card(s) via %s", len(cards), a.client.ProviderName()),
	}
	select {
	case a.eventChan <- e:
	default:
		logrus.Warn("Event channel full, dropping analysis event.")
	}
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	if _, err := os.Stat(a.socketPath); err == nil {
		// Socket file exists, try to connect
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		// Connection failed - socket file is stale, remove it
		logrus.Infof("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	logrus.Infof("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer a.wg.Done()
	defer logrus.Info("Socket command listener stopped.")

	if a.listener == nil {
		logrus.Error("Socket listener not initialized.")
		return
	}

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return // Expected error on shutdown
			default:
				logrus.Warnf("Failed to accept connection: %v", err)
				if ne, ok := err.(net.Error); ok && !ne.Temporary() {
					logrus.Warn("Non-temporary accept error, stopping listener.")
					return
				}
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		a.wg.Add(1)
		go a.handleConnection(conn)
	}
}

// handleConnection reads command, processes it, and sends response
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()
	defer a.wg.Done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			logrus.Warnf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	logrus.Debugf("Received command: %s", cmd.Name)

	response := a.processCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		logrus.Warnf("Failed to send response: %v", err)
	}
}

// processCommand routes the command to the correct handler
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdGetStatus:
		var snap event.MonitorSnapshot
		var switched bool
		if a.mon != nil {
			snap = a.mon.Snapshot()
			switched = a.mon.WindowJustSwitched()
		}
		state := event.StateActive
		if a.orch != nil {
			state = a.orch.State()
		}
		a.statusMutex.RLock()
		cards := a.cardsGenerated
		a.statusMutex.RUnlock()

		status := ipc.StatusData{
			ActivityState:      state,
			AppID:              snap.AppID,
			WindowTitle:        snap.WindowTitle,
			IdleSeconds:        snap.IdleSeconds,
			ScreenLocked:       snap.ScreenLocked,
			WindowJustSwitched: switched,
			IdleSourceOK:       snap.IdleSourceOK,
			Provider:           a.client.ProviderName(),
			CardsGenerated:     cards,
		}
		if a.client.Unconfigured() {
			status.Provider += " (unconfigured)"
		}
		return ipc.Response{Success: true, Data: status}

	case ipc.CmdGetCards:
		var args ipc.GetCardsArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		cards, err := a.storage.GetRecentCards(ctx, args.Limit)
		if err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Failed to load cards: %v", err)}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("%d card(s)", len(cards)), Data: cards}

	case ipc.CmdCaptureNow:
		if a.orch == nil {
			return ipc.Response{Success: false, Message: "Capture is disabled (no X11 connection)"}
		}
		a.orch.CaptureNow()
		return ipc.Response{Success: true, Message: "Capture requested"}

	case ipc.CmdTestConnection:
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()
		if err := a.client.TestConnection(ctx); err != nil {
			switch analysis.Classify(err) {
			case analysis.FailureUnconfigured:
				return ipc.Response{Success: false, Message: "AI provider is not configured (missing api_key)"}
			case analysis.FailureBadRequest:
				return ipc.Response{Success: false, Message: fmt.Sprintf("Provider rejected the request: %v", err)}
			default:
				return ipc.Response{Success: false, Message: fmt.Sprintf("Connection test failed: %v", err)}
			}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Provider '%s' reachable", a.client.ProviderName())}

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}
	}
}

// Helper function to convert map[string]interface{} (from json unmarshal) to struct
func mapToStruct(input interface{}, output interface{}) error {
	if input == nil {
		return nil // No args provided, might be okay for some commands
	}
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal args map: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal args into struct: %w", err)
	}
	return nil
}

func (a *App) Run() error {
	defer a.cleanup()

	logrus.Info("Starting SLS perception daemon...")
	if a.mon == nil {
		logrus.Info("Window monitoring: DISABLED")
	} else {
		logrus.Info("Window monitoring: ENABLED")
	}
	if a.client.Unconfigured() {
		logrus.Infof("AI analysis: DISABLED (no api_key for provider '%s')", a.client.ProviderName())
	} else {
		logrus.Infof("AI analysis: ENABLED (provider '%s')", a.client.ProviderName())
	}

	if err := a.setupSocket(); err != nil {
		return fmt.Errorf("failed to set up socket: %w", err)
	}

	a.handleSignals()

	// React to config-file edits: only the privacy section is hot-reloaded.
	config.WatchPrivacy(func(pc config.PrivacyConfig) {
		fresh := privacyFromConfig(pc)
		a.privacyCfg.Store(&fresh)
		logrus.Infof("Privacy filter reloaded: %d excluded app(s), %d title keyword(s)",
			len(fresh.ExcludedApps), len(fresh.TitleKeywords))
	})

	a.wg.Add(1)
	go a.processEvents()

	if a.mon != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.mon.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Errorf("Monitor error: %v", err)
			}
		}()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.orch.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Errorf("Capture orchestrator error: %v", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.batcher.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("Analysis batcher error: %v", err)
		}
	}()

	a.wg.Add(1)
	go a.listenForCommands()

	// Record App Start event
	_, err := a.storage.SaveEvent(a.ctx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStart})
	if err != nil {
		logrus.Warnf("Failed to save AppStart event: %v", err)
	}

	logrus.Info("Daemon running. Send commands via sls-cli or socket.")
	<-a.ctx.Done()

	logrus.Info("Shutdown signal received, waiting for components...")

	// Close the listener *before* waiting for goroutines to allow accept() to return
	if a.listener != nil {
		if err := a.listener.Close(); err != nil {
			logrus.Warnf("Error closing socket listener: %v", err)
		}
	}

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()

	select {
	case <-waitChan:
		logrus.Info("All application goroutines finished.")
	case <-time.After(5 * time.Second):
		logrus.Warn("Timeout waiting for application goroutines to stop.")
	}

	logrus.Info("Daemon finished.")
	return nil
}

// processEvents drains the shared event channel into storage.
func (a *App) processEvents() {
	defer a.wg.Done()
	defer logrus.Info("Event processor stopped.")

	for {
		select {
		case <-a.ctx.Done():
			return
		case e := <-a.eventChan:
			if e.Type == event.EventTypeWindowChange {
				logrus.Debugf("Window Changed: App='%s', Title='%s'", e.AppID, monitor.Truncate(e.WindowTitle, 80))
			}
			_, err := a.storage.SaveEvent(a.ctx, e)
			if err != nil {
				logrus.Warnf("Error saving event (Type: %s, Tag: %s): %v", e.Type, e.Tag, err)
			}
		}
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal: %v. Initiating shutdown...", sig)
		a.cancel()
	}()
}

// cleanup needs to ensure socket removal
func (a *App) cleanup() {
	logrus.Info("Running cleanup...")

	// Record App Stop event
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer saveCancel()
	_, err := a.storage.SaveEvent(saveCtx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStop})
	if err != nil {
		logrus.Warnf("Failed to save AppStop event: %v", err)
	}

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			logrus.Warnf("Error stopping X11 source: %v", err)
		}
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			logrus.Warnf("Error closing storage: %v", err)
		}
	}

	// --- Remove Socket File ---
	// Note: Listener is closed in Run() before wg.Wait()
	if _, err := os.Stat(a.socketPath); err == nil {
		logrus.Debugf("Removing socket file: %s", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			logrus.Warnf("Failed to remove socket file %s: %v", a.socketPath, err)
		}
	}

	logrus.Info("Cleanup finished.")
}
