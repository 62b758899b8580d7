// Herramienta de provisioning: cifra un secreto MAC con la master key de
// secretbox para insertarlo en credentials.secret_enc.
//
//	SECRETBOX_MASTER_KEY=... go run tools/encrypt_secret.go <secret>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dropDatabas3/agentgate/internal/security/secretbox"
	"github.com/dropDatabas3/agentgate/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run encrypt_secret.go <plaintext_secret>")
	}

	plaintext := os.Args[1]
	encrypted, err := secretbox.Encrypt(plaintext)
	if err != nil {
		log.Fatalf("Encryption failed: %v", err)
	}

	fmt.Printf("Plaintext: %s\n", util.MaskSecret(plaintext))
	fmt.Printf("Encrypted: %s\n", encrypted)
}
