package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github/itish2003/pdfchat/client/api"
	"github/itish2003/pdfchat/client/tui"
)

func main() {
	_ = godotenv.Load()

	server := os.Getenv("PDFCHAT_SERVER")
	if server == "" {
		server = "http://localhost:3001"
	}
	var timeout time.Duration
	flag.StringVar(&server, "server", server, "Base URL of the pdfchat server")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for each request")
	flag.Parse()

	client := api.New(server, timeout)

	// Optional: pdfchat-client file.pdf uploads before the UI starts.
	if path := flag.Arg(0); path != "" {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		resp, err := client.Upload(ctx, path)
		cancel()
		if err != nil {
			log.Fatalf("failed to upload %s: %v", path, err)
		}
		fmt.Printf("%s: %s (%d passages)\n", resp.Message, resp.Source, resp.Passages)
	}

	m := tui.New(client, timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}
