// Command helper simulates a driver: it goes online, long-polls job offers,
// claims them and works each through start and complete.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"haul-dispatch/internal/config"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/mylogger"

	"github.com/golang-jwt/jwt"
)

func main() {
	// Initialize config and logger
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := mylogger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	driverID := flag.String("driver_id", "", "Driver ID, must be registered and approved")
	driverToken := flag.String("token", "", "Driver token; signed with JWT_SECRET when empty")
	baseURL := flag.String("base_url", "http://localhost:"+cfg.Srv.DispatchServicePort, "Dispatch service URL")
	lat := flag.Float64("lat", 30.2672, "Initial latitude")
	lng := flag.Float64("lng", -97.7431, "Initial longitude")
	flag.Parse()

	if *driverID == "" {
		log.Fatal("Driver ID is required")
	}

	token := *driverToken
	if token == "" {
		token, err = signDriverToken(*driverID, cfg.App.PublicJwtSecret)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Action("driver_simulator_started").Info("Driver simulator starting up", "driver_id", *driverID, "base_url", *baseURL)

	ds := NewDriverService(Config{
		BaseURL:         *baseURL,
		DriverID:        *driverID,
		Token:           token,
		InitialLocation: Location{Latitude: *lat, Longitude: *lng},
	}, appLogger)
	if err := ds.Run(ctx); err != nil {
		appLogger.Error("Driver simulator stopped", err)
		os.Exit(1)
	}
}

func signDriverToken(driverID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": driverID,
		"role":    string(model.RoleDriver),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}
