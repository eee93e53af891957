package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/cisco7507/langid-mr/internal/config"
)

var (
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install langidd as a background OS service",
		Run:   runInstall,
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the installed langidd service",
		Run:   runStart,
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the installed langidd service",
		Run:   runStop,
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the langidd service",
		Run:   runUninstall,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Tail the service log file",
		Run:   runLogs,
	}
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(logsCmd)
}

// program adapts app's lifecycle to the kardianos/service.Interface contract.
// Start must not block, so the actual server runs on its own goroutine; Stop
// cancels the context that run() is waiting on.
type program struct {
	cancel context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	go p.run()
	return nil
}

func (p *program) run() {
	if err := setupServiceLogging(); err != nil {
		log.Printf("failed to set up file logging: %v", err)
	}
	log.Println("langidd service starting...")

	cfg := config.Load()
	a, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if err := a.run(ctx); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	log.Println("langidd service stopping...")
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func getServiceConfig() *service.Config {
	ex, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}

	return &service.Config{
		Name:        "langidd",
		DisplayName: "Language Identification Service",
		Description: "Ingests audio and runs it through the EN/FR language gate and worker pipeline.",
		Executable:  ex,
		Arguments:   []string{"service-run"},
	}
}

// serviceRunCmd is the hidden entrypoint the OS service manager actually
// launches; it blocks inside service.Service.Run() until Stop is called.
var serviceRunCmd = &cobra.Command{
	Use:    "service-run",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := setupServiceLogging(); err != nil {
			log.Printf("failed to set up file logging: %v", err)
		}
		log.Println("starting service-run command...")

		prg := &program{}
		s, err := service.New(prg, getServiceConfig())
		if err != nil {
			log.Fatalf("failed to create service: %v", err)
		}

		svcLogger, err := s.Logger(nil)
		if err != nil {
			log.Printf("failed to get system logger: %v", err)
		} else {
			_ = svcLogger.Info("langidd service starting...")
		}

		if err := s.Run(); err != nil {
			if svcLogger != nil {
				_ = svcLogger.Error(err)
			}
			log.Fatalf("service failed to run: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serviceRunCmd)
}

func runInstall(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Install(); err != nil {
		log.Fatalf("failed to install service: %v", err)
	}
	fmt.Println("Service installed successfully.")
}

func runStart(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Start(); err != nil {
		log.Fatalf("failed to start service: %v", err)
	}
	fmt.Println("Service started.")
}

func runStop(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		log.Fatalf("failed to stop service: %v", err)
	}
	fmt.Println("Service stopped.")
}

func runUninstall(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Uninstall(); err != nil {
		log.Fatalf("failed to uninstall service: %v", err)
	}
	fmt.Println("Service uninstalled.")
}

func getLogFilePath() string {
	return "/tmp/langidd-service.log"
}

func setupServiceLogging() error {
	logFile := getLogFilePath()
	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening file: %v", err)
	}
	log.SetOutput(f)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) {
	logFile := getLogFilePath()
	fmt.Printf("Tailing logs from %s...\n", logFile)

	c := exec.Command("tail", "-f", logFile)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		fmt.Printf("error tailing logs: %v\n", err)
	}
}
