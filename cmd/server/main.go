/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the custody engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the deployment profile (fees, receiver, chain id)
  3. Open the SQLite event journal
  4. Construct collaborators (token registry, native bank) and the engine
  5. Configure the HTTP router and start the server

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite journal path (default: custody.db; ":memory:" works)
  -config  JSON deployment profile path (default: built-in dev profile)
  -demo    Seed a demo token and funded demo accounts

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the journal, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - factory/config.go: Deployment profile format
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"

	"github.com/warp/custody-engine/api"
	"github.com/warp/custody-engine/engine"
	"github.com/warp/custody-engine/factory"
	"github.com/warp/custody-engine/store/sqlite"
	"github.com/warp/custody-engine/token"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "custody.db", "SQLite journal path")
	configPath := flag.String("config", "", "JSON deployment profile path")
	demo := flag.Bool("demo", false, "seed a demo token and funded accounts")
	flag.Parse()

	// Deployment profile
	profile := factory.DefaultProfile()
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to read config: %v", err)
		}
		profile, err = factory.ParseConfig(raw)
		if err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
	}

	// Event journal
	journal, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer journal.Close()

	// Collaborators and engine
	registry := token.NewRegistry()
	bank := token.NewBank()
	eng := engine.New(profile.Bind(registry, bank))

	if *demo {
		seedDemo(eng, registry, bank)
	}

	handler := api.NewHandler(eng, registry, bank, journal)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Custody engine listening on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedDemo registers one demo token and funds two demo accounts with both
// tokens and native currency, so the API is usable out of the box.
func seedDemo(eng *engine.Engine, registry *token.Registry, bank *token.Bank) {
	tokenAddr := engine.MustAddress("0x0000000000000000000000000000000000000001")
	alice := engine.MustAddress("0x00000000000000000000000000000000000000a1")
	bob := engine.MustAddress("0x00000000000000000000000000000000000000b0")

	tok := token.NewStandard(18)
	tok.Bind(eng.Self())
	registry.Register(tokenAddr, tok)

	supply := uint256.MustFromDecimal("1000000000000000000000") // 1000 units
	native := uint256.MustFromDecimal("10000000000000000000")   // 10 native

	for _, acct := range []engine.Address{alice, bob} {
		tok.Mint(acct, supply)
		bank.Fund(acct, native)
	}

	log.Printf("Demo token %s; accounts %s, %s funded", tokenAddr, alice, bob)
}
