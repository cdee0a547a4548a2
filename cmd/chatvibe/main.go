// Package main implements the ChatVibe console entry point. It parses the
// command line, wires the configuration, session and registry services, and
// runs the terminal UI either on the backend menu or connected to a profile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/app"
	"github.com/chatvibe/console/internal/config"
	"github.com/chatvibe/console/internal/content"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"github.com/chatvibe/console/internal/registry"
	"github.com/chatvibe/console/internal/ui/menu"
)

// Application metadata
const (
	Version     = "1.0.0"
	ProgramName = "ChatVibe Console"
)

// CommandLineArgs represents parsed command-line arguments
type CommandLineArgs struct {
	Host        string
	Profile     string
	BaseURL     string
	SocketURL   string
	Credentials string
	Theme       string
	ShowHelp    bool
	ShowVersion bool
}

// Dependencies holds the services shared by every backend connection
type Dependencies struct {
	ConfigManager   *config.Manager
	SessionStore    interfaces.SessionStore
	ContentRenderer *content.Renderer
	RegistryManager *registry.Manager
	Logger          *logging.Logger
}

func main() {
	args := parseCommandLineArgs()
	if handleEarlyExitConditions(args) {
		return
	}

	logger := initializeLogging(args)

	if err := validateArguments(args); err != nil {
		logger.Error("Invalid arguments", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	deps, err := initializeDependencies(logger)
	if err != nil {
		logger.Error("Failed to initialize application components", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Error initializing application: %v\n", err)
		os.Exit(1)
	}

	if err := run(deps, args); err != nil {
		logger.Error("Application terminated with error", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Application shutdown completed successfully")
}

// parseCommandLineArgs processes command-line arguments
func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.Host, "host", "", "Connect to host:port with a temporary cookie-mode profile")
	flag.StringVar(&args.Profile, "profile", "", "Profile name from the configuration file to connect with")
	flag.StringVar(&args.BaseURL, "base-url", "", "Override the REST base URL of the profile")
	flag.StringVar(&args.SocketURL, "socket-url", "", "Override the chat socket base URL of the profile")
	flag.StringVar(&args.Credentials, "credentials", "", "Override the credential mode of the profile (bearer or cookie)")
	flag.StringVar(&args.Theme, "theme", "", "Theme name for syntax highlighting and UI elements")
	flag.BoolVar(&args.ShowHelp, "help", false, "Display usage information and exit")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", ProgramName, Version)
		fmt.Fprintf(os.Stderr, "A terminal client for ChatVibe chat servers.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                            # Show the backend menu\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -profile local             # Connect with the 'local' profile\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -host localhost:8000       # Connect to a host in cookie mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -profile local -credentials bearer\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %s, %s override profile URLs\n", config.EnvBaseURL, config.EnvSocketURL)
		fmt.Fprintf(os.Stderr, "  CHATVIBE_LOG_FILE sets the log file, CHATVIBE_DEBUG=true enables debug logs\n")
	}

	flag.Parse()
	return args
}

// handleEarlyExitConditions processes help and version flags that cause immediate exit
func handleEarlyExitConditions(args CommandLineArgs) bool {
	if args.ShowHelp {
		flag.Usage()
		return true
	}
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, Version)
		fmt.Printf("Built with Go and Charm libraries\n")
		return true
	}
	return false
}

// initializeLogging sets up the logging system. The UI owns the terminal,
// so logs go to a file.
func initializeLogging(args CommandLineArgs) *logging.Logger {
	logConfig := logging.DefaultConfig()
	if os.Getenv("CHATVIBE_DEBUG") == "true" {
		logConfig.Level = logging.DebugLevel
		logConfig.Format = "json"
	}

	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logger := logging.GetGlobalLogger()
	logger.Info("ChatVibe console starting",
		"version", Version,
		"profile", args.Profile,
		"host", args.Host)
	return logger
}

// validateArguments ensures command-line arguments are compatible
func validateArguments(args CommandLineArgs) error {
	if args.Host != "" && args.Profile != "" {
		return fmt.Errorf("cannot specify both -host and -profile")
	}
	switch args.Credentials {
	case "", interfaces.CredentialsBearer, interfaces.CredentialsCookie:
	default:
		return fmt.Errorf("credentials must be %q or %q", interfaces.CredentialsBearer, interfaces.CredentialsCookie)
	}
	if (args.BaseURL != "" || args.SocketURL != "" || args.Credentials != "") && args.Host == "" && args.Profile == "" {
		return fmt.Errorf("-base-url, -socket-url and -credentials need -profile or -host")
	}
	return nil
}

// initializeDependencies creates the shared services
func initializeDependencies(logger *logging.Logger) (Dependencies, error) {
	logger.Debug("Initializing application components")

	var deps Dependencies
	deps.Logger = logger

	configManager, err := config.NewManager()
	if err != nil {
		return deps, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	deps.ConfigManager = configManager

	deps.SessionStore = newSessionStore(logger)

	contentRenderer, err := content.NewRenderer()
	if err != nil {
		return deps, fmt.Errorf("failed to initialize content renderer: %w", err)
	}
	deps.ContentRenderer = contentRenderer

	registryManager, err := registry.NewManager(configManager, registry.DefaultPreferences())
	if err != nil {
		return deps, fmt.Errorf("failed to initialize registry manager: %w", err)
	}
	deps.RegistryManager = registryManager

	logger.Info("Application components initialized successfully")
	return deps, nil
}

// newSessionStore persists sessions next to the config file, falling back to
// memory when the key or the file cannot be set up.
func newSessionStore(logger *logging.Logger) interfaces.SessionStore {
	security, err := config.NewSecurityManager()
	if err != nil {
		logger.Warn("Session persistence disabled", "error", err.Error())
		return config.NewMemorySessionStore()
	}
	path, err := config.DefaultSessionPath()
	if err != nil {
		logger.Warn("Session persistence disabled", "error", err.Error())
		return config.NewMemorySessionStore()
	}
	store, err := config.NewFileSessionStore(path, security)
	if err != nil {
		logger.Warn("Session persistence disabled", "error", err.Error())
		return config.NewMemorySessionStore()
	}
	return store
}

// determineProfile resolves the profile to connect with, or nil for the menu.
func determineProfile(deps Dependencies, args CommandLineArgs) (*interfaces.Profile, error) {
	var profile *interfaces.Profile
	switch {
	case args.Host != "":
		p, err := menu.QuickProfile(args.Host)
		if err != nil {
			return nil, err
		}
		profile = p
	case args.Profile != "":
		p, err := deps.ConfigManager.LoadProfile(args.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile '%s': %w", args.Profile, err)
		}
		profile = p
	default:
		return nil, nil
	}

	if args.BaseURL != "" {
		profile.BaseURL = args.BaseURL
	}
	if args.SocketURL != "" {
		profile.SocketURL = args.SocketURL
	}
	if args.Credentials != "" {
		profile.CredentialMode = args.Credentials
	}
	if args.Theme != "" {
		profile.Theme = args.Theme
	}
	if err := deps.ConfigManager.ValidateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// run starts health monitoring and the Bubble Tea program.
func run(deps Dependencies, args CommandLineArgs) error {
	profile, err := determineProfile(deps, args)
	if err != nil {
		return fmt.Errorf("failed to determine connection profile: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interval := registry.DefaultPreferences().HealthCheckInterval
	if err := deps.RegistryManager.StartHealthMonitoring(ctx, interval); err != nil {
		deps.Logger.Warn("Health monitoring not started", "error", err.Error())
	} else {
		defer func() { _ = deps.RegistryManager.StopHealthMonitoring() }()
	}

	controller := app.NewConsoleController(app.Options{
		Registry: deps.RegistryManager,
		Config:   deps.ConfigManager,
		Store:    deps.SessionStore,
		Renderer: deps.ContentRenderer,
		Profile:  profile,
	})
	defer controller.Close()

	program := tea.NewProgram(controller, tea.WithAltScreen())
	controller.Bind(program.Send)

	deps.Logger.Info("Starting TUI application")
	_, err = program.Run()
	return err
}
