package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"planner/internal/infra"
	"planner/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		labelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "Google API key used for Veo (fallbacks to GOOGLE_API_KEY)")
	flag.StringVar(&labelFlag, "label", "", "Optional label stored with the key")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Google API key is required via -key or GOOGLE_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "veokey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{"set_at": time.Now().UTC().Format(time.RFC3339)}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}
	if err := store.SetVeoAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist veo api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Veo API key stored successfully")
}
