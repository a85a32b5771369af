package syncer

import (
	"strconv"

	"nodewatch/internal/api"
	"nodewatch/internal/protocol"
)

// Keys of the published progress map. LocalHeight and TipHeight are the
// original names and are still filled for older consumers.
const (
	KeyStep                  = "step"
	KeyInitialConnectedPeers = "initial_connected_peers"
	KeyRequiredPeers         = "required_peers"
	KeyLocalHeaderHeight     = "local_header_height"
	KeyTipHeaderHeight       = "tip_header_height"
	KeyLocalBlockHeight      = "local_block_height"
	KeyTipBlockHeight        = "tip_block_height"
	KeyLocalHeight           = "local_height"
	KeyTipHeight             = "tip_height"
)

// Progress derives the progress map and percentage for one sync snapshot.
// States other than startup, header and block sync yield an empty map and 0.
// The percentage is not clamped and a zero denominator yields 0.
func Progress(p *api.SyncProgressResponse, requiredPeers uint32) (map[string]string, float64) {
	fields := make(map[string]string)
	if p == nil {
		return fields, 0
	}

	tip := strconv.FormatUint(p.TipHeight, 10)
	local := strconv.FormatUint(p.LocalHeight, 10)

	switch p.State {
	case api.SyncStateStartup:
		fields[KeyStep] = string(protocol.SyncStepStartup)
		fields[KeyInitialConnectedPeers] = strconv.FormatUint(p.InitialConnectedPeers, 10)
		fields[KeyRequiredPeers] = strconv.FormatUint(uint64(requiredPeers), 10)
		return fields, ratio(p.InitialConnectedPeers, uint64(requiredPeers))

	case api.SyncStateHeader:
		fields[KeyStep] = string(protocol.SyncStepHeader)
		fields[KeyLocalHeaderHeight] = local
		fields[KeyTipHeaderHeight] = tip
		fields[KeyLocalBlockHeight] = "0"
		fields[KeyTipBlockHeight] = tip
		fields[KeyLocalHeight] = local
		fields[KeyTipHeight] = tip
		return fields, ratio(p.LocalHeight, p.TipHeight)

	case api.SyncStateBlock:
		fields[KeyStep] = string(protocol.SyncStepBlock)
		fields[KeyLocalHeaderHeight] = tip
		fields[KeyTipHeaderHeight] = tip
		fields[KeyLocalBlockHeight] = local
		fields[KeyTipBlockHeight] = tip
		fields[KeyLocalHeight] = local
		fields[KeyTipHeight] = tip
		return fields, ratio(p.LocalHeight, p.TipHeight)
	}
	return fields, 0
}

func ratio(num, den uint64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
