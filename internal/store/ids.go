package store

import (
	"crypto/rand"
	"encoding/hex"
)

// Local IDs are random hex with a prefix that marks provenance. The
// prefix survives until sync replaces the record with its server ID.

// generateProductID generates a unique local product ID
func generateProductID() (string, error) {
	bytes := make([]byte, 4) // 8 hex characters - larger space to reduce collision risk
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return productIDPrefix + hex.EncodeToString(bytes), nil
}

// generateSaleID generates a unique local sale ID
func generateSaleID() (string, error) {
	bytes := make([]byte, 4) // 8 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return saleIDPrefix + hex.EncodeToString(bytes), nil
}

// generateQueueID generates a unique sync queue item ID
func generateQueueID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return queueIDPrefix + hex.EncodeToString(bytes), nil
}
