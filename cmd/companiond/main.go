// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/wingedpig/aicompanion/internal/app"
	"github.com/wingedpig/aicompanion/internal/config"
)

var version = "0.1"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP/WebSocket listener host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP/WebSocket listener port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("companiond %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "companiond init" subcommand: writes a starter
// companion.hjson in the current directory.
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: companiond init [options]

Create a new companion.hjson configuration file in the current directory.

Options:
  -h, -help    Show this help message`)
		return nil
	}

	configFile := "companion.hjson"
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Companion Server Configuration Setup")
	fmt.Println("=====================================")
	fmt.Println()
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	portStr := prompt(reader, "Server port", "8765")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8765
	}

	safeRoot := prompt(reader, "Safe root directory sessions may operate in", mustGetwd())
	binary := prompt(reader, "Assistant CLI binary", "claude")
	preset := prompt(reader, "Security preset (unrestricted/standard/restricted)", "standard")

	content := generateConfig(port, safeRoot, binary, preset)
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit companion.hjson as needed")
	fmt.Println("  2. Run: ./companiond")
	fmt.Println()

	return nil
}

func mustGetwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(port int, safeRoot, binary, preset string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Companion Server Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  // ---------------------------------------------------------------------------
  // Server Settings
  // ---------------------------------------------------------------------------
  server: {
    host: "127.0.0.1"
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`

    // For HTTPS, uncomment and set paths to your certificates:
    // tls_cert: "~/.companion/cert.pem"
    // tls_key: "~/.companion/key.pem"
  }

  // ---------------------------------------------------------------------------
  // Worktree / Safe Root
  // ---------------------------------------------------------------------------
  //
  // Sessions may only be created inside this directory tree.
  worktree: {
    safe_root: "`)
	sb.WriteString(escapeHJSONValue(safeRoot))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // Session Lifecycle
  // ---------------------------------------------------------------------------
  sessions: {
    max_sessions: 20
    session_timeout: "30m"
    backgrounded_session_timeout: "24h"
    session_warning_time: "5m"
    min_timeout_check_interval: "30s"
  }

  // ---------------------------------------------------------------------------
  // Client Connections
  // ---------------------------------------------------------------------------
  connection: {
    health_check_interval: "30s"
    reconnection_window: "2m"
  }

  // ---------------------------------------------------------------------------
  // Command Security
  // ---------------------------------------------------------------------------
  //
  // preset: "unrestricted" (no blocked commands, no confirmation),
  // "standard" (blocked-command list plus confirmation of destructive
  // commands), or "restricted" (every command is denied).
  security: {
    preset: "`)
	sb.WriteString(escapeHJSONValue(preset))
	sb.WriteString(`"
    enable_audit: true

    // Literal or "re:"-prefixed regex patterns. Regexes are checked at load
    // time, but the preset's own blocked-command list replaces this list, so
    // these entries are not enforced:
    // blocked_commands: ["re:^curl.*\\|.*sh$"]

    // When set, every path a command names must lie under one of these:
    // safe_directories: ["/tmp/scratch"]
  }

  // ---------------------------------------------------------------------------
  // Assistant CLI
  // ---------------------------------------------------------------------------
  assistant: {
    binary: "`)
	sb.WriteString(escapeHJSONValue(binary))
	sb.WriteString(`"
    permission_mode: "default"
    skip_permissions: false
    use_pty: false

    // allowed_tools: ["Read", "Edit"]
    // disallowed_tools: ["Bash"]
  }

  // ---------------------------------------------------------------------------
  // Event History
  // ---------------------------------------------------------------------------
  events: {
    history_max_events: 10000
    history_max_age: "1h"
  }

  // ---------------------------------------------------------------------------
  // Logging
  // ---------------------------------------------------------------------------
  logging: {
    level: "info"
    format: "json"
  }

  // ---------------------------------------------------------------------------
  // Push Notification Collaborator
  // ---------------------------------------------------------------------------
  push: {
    enabled: false
  }
}
`)

	return sb.String()
}
