package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"nexus.backend/pkg/jwt"
)

func main() {
	service := flag.String("service", "", "calling service name, e.g. discord-bot or matscraft-1")
	role := flag.String("role", jwt.RoleGameServer, "service role: chat-bot or game-server")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")

	token, err := mintToken(secret, *service, *role, *ttl)
	if err != nil {
		log.Fatalf("failed to mint service token: %v", err)
	}

	fmt.Println("Generated service token")
	fmt.Printf("SERVICE=%s\n", *service)
	fmt.Printf("ROLE=%s\n", *role)
	fmt.Printf("TOKEN=%s\n", token)
}

func validateInputs(secret, service, role string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if service == "" {
		return errors.New("service is required")
	}
	if role != jwt.RoleChatBot && role != jwt.RoleGameServer {
		return fmt.Errorf("invalid role: %s (allowed: %s, %s)", role, jwt.RoleChatBot, jwt.RoleGameServer)
	}
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl: %s (must be positive)", ttl)
	}
	return nil
}

func mintToken(secret, service, role string, ttl time.Duration) (string, error) {
	if err := validateInputs(secret, service, role, ttl); err != nil {
		return "", err
	}
	return jwt.NewJWTService(secret, ttl).GenerateServiceToken(service, role)
}
