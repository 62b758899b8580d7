// Package secretbox cifra secretos en reposo (los shared secrets MAC de las
// credenciales) con AES-256-GCM y una clave maestra tomada de entorno.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// EnvVar es la variable de entorno con la clave maestra (base64, 32 bytes).
	EnvVar = "SECRETBOX_MASTER_KEY"

	nonceSize = 12  // AES-GCM nonce recomendado (96 bits)
	keyLength = 32  // AES-256
	partsSep  = "|" // nonce|ciphertext (ambos base64)
)

var (
	masterKey []byte
	loadOnce  sync.Once
	loadErr   error
	mu        sync.RWMutex
)

func ensureLoaded() error {
	loadOnce.Do(func() {
		kb64 := strings.TrimSpace(os.Getenv(EnvVar))
		if kb64 == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", EnvVar)
			return
		}
		k, err := base64.StdEncoding.DecodeString(kb64)
		if err != nil {
			loadErr = fmt.Errorf("decode %s: %w", EnvVar, err)
			return
		}
		if len(k) != keyLength {
			loadErr = fmt.Errorf("%s debe decodificar a %d bytes, obtuvo %d", EnvVar, keyLength, len(k))
			return
		}
		mu.Lock()
		masterKey = append([]byte(nil), k...)
		mu.Unlock()
	})
	return loadErr
}

// Ready expone si la clave está cargada (útil para healthchecks).
func Ready() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(masterKey) == keyLength
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func Encrypt(plainText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	mu.RLock()
	key := append([]byte(nil), masterKey...)
	mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + partsSep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt descifra un valor producido por Encrypt.
func Decrypt(cipherText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	mu.RLock()
	key := append([]byte(nil), masterKey...)
	mu.RUnlock()

	parts := strings.Split(cipherText, partsSep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSize, len(nonce))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(pt), nil
}

// UnsafeResetForTests limpia el estado global de la clave maestra.
// Solo para tests que necesitan recargar la clave desde entorno.
func UnsafeResetForTests() {
	mu.Lock()
	masterKey = nil
	mu.Unlock()
	loadOnce = sync.Once{}
	loadErr = nil
}
