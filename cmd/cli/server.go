package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

const (
	serverBinaryName   = "tunegrab-server"
	serverBinaryEnv    = "TUNEGRAB_SERVER_BIN"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var serverConfigPath string

// isServerRunning checks if the server answers its readiness probe
func isServerRunning() bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(serverURL + "/ready")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findServerBinary locates the server binary: $TUNEGRAB_SERVER_BIN, next to
// the CLI, on PATH, then well-known install dirs
func findServerBinary() (string, error) {
	if p := os.Getenv(serverBinaryEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points to a missing file: %w", serverBinaryEnv, err)
		}
		return p, nil
	}

	if execPath, err := os.Executable(); err == nil {
		serverPath := filepath.Join(filepath.Dir(execPath), serverBinaryName)
		if _, err := os.Stat(serverPath); err == nil {
			return serverPath, nil
		}
	}

	if serverPath, err := exec.LookPath(serverBinaryName); err == nil {
		return serverPath, nil
	}

	home, _ := os.UserHomeDir()
	for _, dir := range []string{"/usr/local/bin", "/usr/bin", filepath.Join(home, "go/bin"), filepath.Join(home, ".local/bin")} {
		p := filepath.Join(dir, serverBinaryName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", serverBinaryName)
}

// startServerBackground starts the server detached from the terminal.
// The server daemonizes itself; the launched process exits quickly.
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	var args []string
	if serverConfigPath != "" {
		args = append(args, "-config", serverConfigPath)
	}

	cmd := exec.Command(serverPath, args...)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	go cmd.Wait()

	return nil
}

// waitForServerReady polls the server until it's ready or timeout
func waitForServerReady() error {
	deadline := time.Now().Add(serverStartTimeout)

	for time.Now().Before(deadline) {
		if isServerRunning() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}

	return fmt.Errorf("server did not become ready within %v", serverStartTimeout)
}

// ensureServerRunning checks if server is running, starts it if not
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")

	if err := startServerBackground(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := waitForServerReady(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Server started")
	return nil
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the background server",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server if it is not running",
	RunE: func(cmd *cobra.Command, args []string) error {
		if isServerRunning() {
			fmt.Println("Server already running")
			return nil
		}
		return ensureServerRunning()
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var health struct {
			Status  string `json:"status"`
			Version string `json:"version"`
			Queue   struct {
				Running bool `json:"running"`
				Pending int  `json:"pending"`
			} `json:"queue"`
			Downloads struct {
				Active    int `json:"active"`
				Completed int `json:"completed"`
			} `json:"downloads"`
		}
		if err := newAPIClient(serverURL).get("/health", nil, &health); err != nil {
			return fmt.Errorf("server not reachable at %s: %w", serverURL, err)
		}

		fmt.Printf("Server %s (version %s)\n", health.Status, health.Version)
		fmt.Printf("  Queue running: %v, pending: %d\n", health.Queue.Running, health.Queue.Pending)
		fmt.Printf("  Downloads active: %d, completed: %d\n", health.Downloads.Active, health.Downloads.Completed)
		return nil
	},
}

func init() {
	serverCmd.PersistentFlags().StringVar(&serverConfigPath, "config", "", "Config file passed to the server")
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStatusCmd)
}
