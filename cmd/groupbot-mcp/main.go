package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/groupbot-dev/groupbot/internal/mcp"
)

var version = "dev"

// groupbot-mcp exposes the running bot's local API as MCP tools over stdio.
func main() {
	// Load .env file; stdout belongs to the MCP transport
	_ = godotenv.Load()

	apiURL := os.Getenv("GROUPBOT_API_URL")
	if apiURL == "" {
		port := os.Getenv("API_PORT")
		if port == "" {
			port = "9876"
		}
		apiURL = fmt.Sprintf("http://127.0.0.1:%s", port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewClient(apiURL), version)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
