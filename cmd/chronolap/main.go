package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/abrezinsky/chronolap/internal/app"
	"github.com/abrezinsky/chronolap/internal/auth"
	"github.com/abrezinsky/chronolap/internal/logger"
)

var version = "dev"

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func main() {
	// Optional .env file; flags still win over the environment.
	godotenv.Load()

	port := flag.Int("port", envInt("CHRONOLAP_PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("CHRONOLAP_DB", "chronolap.db"), "SQLite database path")
	adminPw := flag.String("adminpw", envString("CHRONOLAP_ADMIN_PASSWORD", ""), "Admin password (auto-generated if not set)")
	baseURL := flag.String("baseurl", envString("CHRONOLAP_BASE_URL", ""), "Public base URL for share links (auto-detected if not set)")
	origins := flag.String("origins", envString("CHRONOLAP_ALLOWED_ORIGINS", ""), "Comma-separated CORS origins (all allowed if not set)")
	logLevel := flag.String("loglevel", envString("CHRONOLAP_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ChronoLap - Multi-Lap Race Timing

Usage:
  chronolap [options]

Options:
  -port int      HTTP server port (default 8080)
  -db string     SQLite database path (default "chronolap.db")
  -adminpw str   Admin password (auto-generated if not set)
  -baseurl str   Public base URL for share links (auto-detected if not set)
  -origins str   Comma-separated CORS origins (all allowed if not set)
  -loglevel str  Log level: debug, info, warn, error (default "info")
  -version       Show version and exit
  -help          Show this help message

Every option can also come from the environment (CHRONOLAP_PORT,
CHRONOLAP_DB, CHRONOLAP_ADMIN_PASSWORD, CHRONOLAP_BASE_URL,
CHRONOLAP_ALLOWED_ORIGINS, CHRONOLAP_LOG_LEVEL) or a .env file.

Examples:
  chronolap                          # Run on port 8080 with chronolap.db
  chronolap -port 80 -db /data/races.db
  chronolap -adminpw secret123       # Use specific admin password

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("chronolap %s\n", version)
		os.Exit(0)
	}

	password := *adminPw
	if password == "" {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	appLog := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	cfg := app.Config{
		Addr:    fmt.Sprintf(":%d", *port),
		DBPath:  *dbPath,
		BaseURL: *baseURL,
	}
	if *origins != "" {
		for _, origin := range strings.Split(*origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	a, err := app.New(appLog, cfg, adminAuth)
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}
	defer a.Close()

	appLog.Info("Admin password", "password", password)

	if err := a.Run(); err != nil {
		log.Fatal(err)
	}
}
