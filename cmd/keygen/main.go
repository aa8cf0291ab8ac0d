package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 {
		fmt.Println("Usage: go run cmd/keygen/main.go")
		fmt.Println("Generates a random 256-bit secret for signing access tokens")
		os.Exit(1)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "generate secret: %v\n", err)
		os.Exit(1)
	}
	key := hex.EncodeToString(secret)

	fmt.Printf("Secret: %s\n", key)
	fmt.Println("\nAdd this to your .env:")
	fmt.Printf("  SECRET_KEY=%s\n", key)
}
