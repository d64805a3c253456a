package pairwise

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Generator derives an algorithmic pairwise identifier. Implementations must
// be pure: equal inputs yield equal output.
type Generator interface {
	Generate(sectorIdentifierURI string, localAccountID string, key string, salt string) (string, error)
}

type GeneratorFunc func(sectorIdentifierURI string, localAccountID string, key string, salt string) (string, error)

func (fn GeneratorFunc) Generate(sectorIdentifierURI string, localAccountID string, key string, salt string) (string, error) {
	return fn(sectorIdentifierURI, localAccountID, key, salt)
}

// HMACGenerator computes base64url(HMAC-SHA256(key, sector + localAccountID + salt))
// without padding, where sector is the URI host or the whole URI when it has
// no host.
type HMACGenerator struct{}

func (HMACGenerator) Generate(sectorIdentifierURI string, localAccountID string, key string, salt string) (string, error) {
	host, err := SectorKey(sectorIdentifierURI)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(host))
	mac.Write([]byte(localAccountID))
	mac.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
