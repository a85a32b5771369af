package identity

import (
	"encoding/hex"
	"fmt"
	"time"

	"nodewatch/internal/api"

	"github.com/ChainSafe/go-schnorrkel"
)

// PublicKeySize is the length of a compressed ristretto255 point.
const PublicKeySize = 32

// NodeIdentity represents the base node's identity as returned by Identify.
// It is only used as a liveness probe and is never cached.
type NodeIdentity struct {
	PublicKey       string   `json:"public_key"`
	PublicAddresses []string `json:"public_addresses"`
	NodeID          string   `json:"node_id"`

	// Probe time
	SeenAt time.Time `json:"seen_at"`

	key *schnorrkel.PublicKey
}

// FromWire validates the node's public key and builds an identity.
func FromWire(w *api.NodeIdentity) (*NodeIdentity, error) {
	if w == nil {
		return nil, fmt.Errorf("empty identity response")
	}
	key, err := ParsePublicKey(w.PublicKey)
	if err != nil {
		return nil, err
	}
	return &NodeIdentity{
		PublicKey:       hex.EncodeToString(w.PublicKey),
		PublicAddresses: append([]string(nil), w.PublicAddresses...),
		NodeID:          hex.EncodeToString(w.NodeId),
		SeenAt:          time.Now(),
		key:             key,
	}, nil
}

// ParsePublicKey decodes a canonical ristretto255 encoding.
func ParsePublicKey(b []byte) (*schnorrkel.PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d, expected %d", len(b), PublicKeySize)
	}
	var raw [PublicKeySize]byte
	copy(raw[:], b)

	key, err := schnorrkel.NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return key, nil
}

// Key returns the parsed public key.
func (i *NodeIdentity) Key() *schnorrkel.PublicKey {
	return i.key
}

// HasPublicAddress reports whether the node advertises at least one address.
func (i *NodeIdentity) HasPublicAddress() bool {
	return len(i.PublicAddresses) > 0
}
