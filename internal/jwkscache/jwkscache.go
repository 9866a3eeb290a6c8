// Package jwkscache fetches and caches RSA public keys from a provider's
// JWKS endpoint, used to verify federated ID tokens.
package jwkscache

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const cacheTTL = 30 * time.Minute

// Cache holds the key set of a single JWKS endpoint, refreshed when a key
// is older than cacheTTL or when the caller forces it.
type Cache struct {
	url string
	log zerolog.Logger

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched map[string]time.Time
}

func New(url string, log zerolog.Logger) *Cache {
	return &Cache{
		url:     url,
		log:     log.With().Str("component", "jwks").Logger(),
		keys:    make(map[string]*rsa.PublicKey),
		fetched: make(map[string]time.Time),
	}
}

// Key returns the public key matching the token's kid header, refreshing
// the key set from the endpoint when needed.
func (c *Cache) Key(token *jwt.Token, forceRefresh bool) (*rsa.PublicKey, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("missing kid in token header")
	}

	c.mu.RLock()
	key, exists := c.keys[kid]
	fetchedAt, fetchedExists := c.fetched[kid]
	c.mu.RUnlock()

	if exists && fetchedExists && time.Since(fetchedAt) <= cacheTTL && !forceRefresh {
		return key, nil
	}

	c.log.Debug().Str("url", c.url).Msg("refreshing JWKS key set")

	resp, err := http.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch public keys: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key response: %w", err)
	}

	var keySet struct {
		Keys []struct {
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, fmt.Errorf("failed to parse public key JSON: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, keyData := range keySet.Keys {
		nBytes, err := decodeBase64URL(keyData.N)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public key modulus: %w", err)
		}

		eBytes, err := decodeBase64URL(keyData.E)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public key exponent: %w", err)
		}

		c.keys[keyData.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: bigEndianBytesToInt(eBytes),
		}
		c.fetched[keyData.Kid] = time.Now()
	}

	if key, ok := c.keys[kid]; ok {
		return key, nil
	}

	return nil, errors.New("no matching public key found")
}

func decodeBase64URL(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(value)
}

func bigEndianBytesToInt(b []byte) int {
	result := 0
	for _, v := range b {
		result = result<<8 + int(v)
	}
	return result
}
