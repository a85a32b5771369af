package basenode

import (
	"context"
	"fmt"

	"nodewatch/internal/api"
	"nodewatch/internal/protocol"
)

// GetVersion returns the version string reported by the node.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return "", err
	}

	res, err := client.GetVersion(ctx, &api.Empty{})
	if err != nil {
		return "", classify("get version", err)
	}
	return res.Value, nil
}

// CheckVersion fails with ErrVersionTooOld when the node is older than the
// gate's minimum. It returns the reported version.
func (c *Client) CheckVersion(ctx context.Context, gate *protocol.VersionGate) (string, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return "", err
	}
	ok, err := gate.IsCompatible(v)
	if err != nil {
		return v, &UnknownError{Err: err}
	}
	if !ok {
		return v, fmt.Errorf("%w: %s < %s", ErrVersionTooOld, v, gate.Minimum())
	}
	log.WithField("version", v).Debug("Base node version accepted")
	return v, nil
}
