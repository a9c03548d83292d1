package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"speakerscribe/internal/app"
)

// main is the application entry point
func main() {
	var (
		helpFlag    = flag.Bool("help", false, "Show help message")
		versionFlag = flag.Bool("version", false, "Show version information")
		configFlag  = flag.String("config", "", "Path to a config file")
		modeFlag    = flag.String("mode", app.ModeAll, "Run mode: server, worker, or all")
	)
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	if err := runApplication(*configFlag, *modeFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// runApplication contains the core application logic that can be tested
func runApplication(configPath, mode string) error {
	// A local .env is a development convenience; its absence is not an error.
	godotenv.Load()

	if configPath != "" {
		os.Setenv("CONFIG_PATH", configPath)
	}

	application, err := app.NewApplication(mode)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		application.Shutdown()
		return fmt.Errorf("application runtime error: %w", err)
	}

	if err := application.Shutdown(); err != nil {
		return fmt.Errorf("application shutdown error: %w", err)
	}
	return nil
}

// printHelp displays command line usage information
func printHelp() {
	fmt.Println("SpeakerScribe - Asynchronous Transcription and Speaker Diarization Service")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    speakerscribe [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -help            Show this help message")
	fmt.Println("    -version         Show version information")
	fmt.Println("    -config <path>   Load configuration from a file")
	fmt.Println("    -mode <mode>     Run mode: server, worker, or all (default: all)")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("    Configuration is loaded from environment variables, or from the")
	fmt.Println("    file named by -config or CONFIG_PATH. A .env file in the working")
	fmt.Println("    directory is loaded if present.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    speakerscribe                      # API server and workers in one process")
	fmt.Println("    speakerscribe -mode server         # API server only")
	fmt.Println("    speakerscribe -mode worker         # Workers only")
	fmt.Println("    speakerscribe -config scribe.yaml  # Run with a config file")
}

// printVersion displays version and build information
func printVersion() {
	fmt.Println("SpeakerScribe")
	fmt.Println("Version: 1.0")
	fmt.Println("Architecture: Go 1.24 + Redis + Whisper + pyannote")
}
