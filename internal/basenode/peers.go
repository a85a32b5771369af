package basenode

import (
	"context"
	"encoding/hex"
	"time"

	"nodewatch/internal/api"
)

const (
	// LastSeenLayout is how the node formats an address' last_seen (UTC).
	LastSeenLayout = "2006-01-02 15:04:05.999999999"
	// PeerFreshness is how recently a peer must have been seen to count as
	// connected.
	PeerFreshness = 60 * time.Second
)

// ListConnectedPeers returns the hex encoded first address of every peer seen
// within PeerFreshness. Peers without addresses or with an unparsable
// last_seen are treated as disconnected.
func (c *Client) ListConnectedPeers(ctx context.Context) ([]string, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return nil, err
	}

	res, err := client.ListConnectedPeers(ctx, &api.Empty{})
	if err != nil {
		return nil, classify("list connected peers", err)
	}
	return filterConnected(res.ConnectedPeers, c.now()), nil
}

func filterConnected(peers []*api.Peer, now time.Time) []string {
	connected := make([]string, 0, len(peers))
	for _, p := range peers {
		if len(p.Addresses) == 0 {
			continue
		}
		addr := p.Addresses[0]
		seen, err := time.ParseInLocation(LastSeenLayout, addr.LastSeen, time.UTC)
		if err != nil {
			log.WithField("last_seen", addr.LastSeen).Trace("Skipping peer with unparsable last seen")
			continue
		}
		// a last_seen in the future counts as just seen
		if age := now.Sub(seen); age >= PeerFreshness {
			continue
		}
		connected = append(connected, hex.EncodeToString(addr.Address))
	}
	return connected
}
