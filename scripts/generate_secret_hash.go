// +build ignore

package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run generate_secret_hash.go <secret>")
		fmt.Println("Example: go run generate_secret_hash.go my-refresh-secret")
		os.Exit(1)
	}

	secret := os.Args[1]
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Secret: %s\n", secret)
	fmt.Printf("Hash: %s\n", string(hash))
	fmt.Println("\nSet REFRESH_SECRET to this hash to avoid storing the plain secret:")
	fmt.Printf("REFRESH_SECRET='%s'\n", string(hash))
}
