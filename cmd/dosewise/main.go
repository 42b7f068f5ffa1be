package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gmsas95/dosewise/internal/app"
	"github.com/gmsas95/dosewise/internal/cli"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/onboarding"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	onboard    = flag.Bool("onboard", false, "Run onboarding wizard")
	version    = "dev"
)

func main() {
	flag.Usage = func() { cli.PrintExtendedHelp(os.Stderr) }
	flag.Parse()
	cli.Version = version

	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	args := flag.Args()
	command := ""
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "help", "--help", "-h":
		cli.PrintExtendedHelp(os.Stdout)
		return
	case "version", "--version", "-v":
		fmt.Printf("DoseWise version %s\n", version)
		return
	case "config":
		cli.HandleConfigCommand(args, *configPath, *dataDir)
		return
	case "doctor":
		cli.HandleDoctorCommand(*configPath, *dataDir)
		return
	case "notify-test":
		cli.HandleNotifyTestCommand(*configPath, *dataDir)
		return
	}

	var cmd cli.Command
	switch command {
	case "onboard", "server", "serve", "":
	default:
		var ok bool
		if cmd, ok = cli.Lookup(command); !ok {
			fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
			cli.PrintExtendedHelp(os.Stderr)
			os.Exit(2)
		}
	}

	application := initApp()
	os.Exit(run(application, command, cmd, args))
}

// run executes the command against an opened application so storage is
// always closed before exit
func run(application *app.App, command string, cmd cli.Command, args []string) int {
	defer application.Close()

	if cmd != nil {
		return cli.Execute(cmd, application, args)
	}
	if command == "onboard" || *onboard {
		return runOnboarding(application)
	}

	if !application.Store.Onboarded() && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("💊 Welcome to DoseWise!")
		fmt.Println()
		fmt.Println("It looks like this is your first time running DoseWise.")
		fmt.Println("Let's set up your profile and first prescription.")
		fmt.Println()
		fmt.Print("Run onboarding wizard? (Y/n): ")

		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))

		if response == "" || response == "y" || response == "yes" {
			if code := runOnboarding(application); code != 0 {
				return code
			}
		}
	}

	if err := application.RunServer(); err != nil {
		application.Logger.Error("Server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func runOnboarding(application *app.App) int {
	if application.Store.Onboarded() {
		fmt.Printf("Already set up for %s. Use 'dosewise reset' to start over.\n", application.Store.User().Name)
		return 0
	}

	wizard := onboarding.NewWizard(application.Logger, application.Lookup, application.Config.Storage.DataDir)
	if err := wizard.Run(context.Background(), application.Store); err != nil {
		fmt.Printf("\n❌ Onboarding failed: %v\n", err)
		return 1
	}
	return 0
}

func initApp() *app.App {
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Debug("Starting DoseWise",
		zap.String("version", version),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("storage", cfg.Storage.Driver),
	)

	application := app.New(cfg, logger, version)
	if err := application.Open(context.Background()); err != nil {
		logger.Fatal("Failed to open application", zap.Error(err))
	}
	return application
}
