package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/funnelworks/leadpipe/internal/api"
	"github.com/funnelworks/leadpipe/internal/calendar"
	"github.com/funnelworks/leadpipe/internal/flow"
	"github.com/funnelworks/leadpipe/internal/genai"
	"github.com/funnelworks/leadpipe/internal/lockfile"
	"github.com/funnelworks/leadpipe/internal/messaging"
	"github.com/funnelworks/leadpipe/internal/schedule"
	"github.com/funnelworks/leadpipe/internal/scheduler"
	"github.com/funnelworks/leadpipe/internal/store"
	"github.com/funnelworks/leadpipe/internal/twiliowhatsapp"
	"github.com/funnelworks/leadpipe/internal/util"
	"github.com/funnelworks/leadpipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadPipe state data
	DefaultStateDir = "/var/lib/leadpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadpipe.db"
	// DefaultWhatsmeowDBFileName is the default whatsmeow session database filename
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadPipe with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("LeadPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadPipe exited successfully")
}

// run wires the store, transport, flow and API server and blocks until the
// context is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	flowOpts, err := buildFlowOptions(ctx, flags)
	if err != nil {
		return err
	}
	leadFlow := flow.NewLeadFlow(st, msgService, flowOpts...)

	cronScheduler := scheduler.NewScheduler()
	defer cronScheduler.Stop()
	if err := cronScheduler.AddJob(*flags.followUpCron, func() {
		leadFlow.SendFollowUps(ctx)
	}); err != nil {
		return err
	}
	slog.Info("Follow-up job scheduled", "cron", *flags.followUpCron)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, msgService, leadFlow, apiOpts...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	WhatsAppDSN   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	Transport     string
	CalendarCreds string
	CalendarID    string
	Timezone      string
	KnowledgeFile string
	FollowUpCron  string
	NumericCode   bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	waDSN         *string
	openaiKey     *string
	apiAddr       *string
	transport     *string
	calendarCreds *string
	calendarID    *string
	timezone      *string
	knowledgeFile *string
	followUpCron  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:      os.Getenv("LEADPIPE_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		Transport:     os.Getenv("MESSAGING_TRANSPORT"),
		CalendarCreds: os.Getenv("GOOGLE_CALENDAR_CREDENTIALS"),
		CalendarID:    os.Getenv("GOOGLE_CALENDAR_ID"),
		Timezone:      os.Getenv("LEADPIPE_TIMEZONE"),
		KnowledgeFile: os.Getenv("KNOWLEDGE_FILE"),
		FollowUpCron:  os.Getenv("FOLLOWUP_CRON"),
		NumericCode:   util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsmeowDBFileName)
	}
	if config.Transport == "" {
		config.Transport = "whatsmeow"
	}
	if config.Timezone == "" {
		config.Timezone = calendar.DefaultTimezone
	}
	if config.FollowUpCron == "" {
		config.FollowUpCron = scheduler.DefaultFollowUpSpec
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"LEADPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_TRANSPORT", config.Transport,
		"GOOGLE_CALENDAR_ID_SET", config.CalendarID != "",
		"KNOWLEDGE_FILE", config.KnowledgeFile)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", config.NumericCode, "use numeric login code instead of QR code (overrides $WHATSAPP_NUMERIC_CODE)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for LeadPipe data (overrides $LEADPIPE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the lead store (overrides $DATABASE_URL)"),
		waDSN:         flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow session (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		transport:     flag.String("transport", config.Transport, "messaging transport: whatsmeow or twilio (overrides $MESSAGING_TRANSPORT)"),
		calendarCreds: flag.String("calendar-credentials", config.CalendarCreds, "Google service account credentials file (overrides $GOOGLE_CALENDAR_CREDENTIALS)"),
		calendarID:    flag.String("calendar-id", config.CalendarID, "Google calendar ID for bookings (overrides $GOOGLE_CALENDAR_ID)"),
		timezone:      flag.String("timezone", config.Timezone, "IANA timezone for slot computation (overrides $LEADPIPE_TIMEZONE)"),
		knowledgeFile: flag.String("knowledge-file", config.KnowledgeFile, "path to the knowledge base file (overrides $KNOWLEDGE_FILE)"),
		followUpCron:  flag.String("followup-cron", config.FollowUpCron, "cron expression for the follow-up sweep (overrides $FOLLOWUP_CRON)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"transport", *flags.transport)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if store.DetectDSNType(dsn) == "postgres" {
			continue
		}
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildStore picks the store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildMessagingService selects and constructs the messaging transport.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.transport == "twilio" {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		slog.Info("Using Twilio messaging transport")
		return messaging.NewTwilioService(client), nil
	}

	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	slog.Info("Using Whatsmeow messaging transport")
	return messaging.NewWhatsAppService(client), nil
}

// buildFlowOptions assembles the optional flow collaborators: generation,
// calendar scheduling and the knowledge base.
func buildFlowOptions(ctx context.Context, flags Flags) ([]flow.Option, error) {
	var opts []flow.Option

	if *flags.openaiKey != "" {
		client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return nil, err
		}
		opts = append(opts, flow.WithGenAI(client))
	} else {
		slog.Warn("No OpenAI API key configured; free conversation will use scripted fallbacks")
	}

	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		slog.Warn("Invalid timezone, falling back to local", "timezone", *flags.timezone, "error", err)
		loc = time.Local
	}
	opts = append(opts, flow.WithEngine(schedule.NewEngine(schedule.WithLocation(loc))))

	if *flags.calendarCreds != "" && *flags.calendarID != "" {
		cal, err := calendar.NewGoogleService(ctx,
			calendar.WithCredentialsFile(*flags.calendarCreds),
			calendar.WithCalendarID(*flags.calendarID),
			calendar.WithTimezone(*flags.timezone),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, flow.WithCalendar(cal))
	} else {
		slog.Warn("No Google Calendar configured; meeting scheduling is disabled")
	}

	if *flags.knowledgeFile != "" {
		kb, err := flow.LoadKnowledgeBase(*flags.knowledgeFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, flow.WithKnowledge(kb))
	}

	return opts, nil
}
