package api

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Empty is the request type of every parameterless call.
type Empty struct{}

func (m *Empty) Marshal() ([]byte, error) { return nil, nil }

func (m *Empty) Unmarshal(b []byte) error {
	return unmarshalFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

// StringValue wraps a single string, as returned by GetVersion.
type StringValue struct {
	Value string
}

func (m *StringValue) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.Value), nil
}

func (m *StringValue) Unmarshal(b []byte) error {
	*m = StringValue{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Value)
		}
		return 0, nil
	})
}

// MetaData describes the node's view of the chain tip.
type MetaData struct {
	BestBlockHeight       uint64
	BestBlockHash         []byte
	PrunedHeight          uint64
	AccumulatedDifficulty []byte
	Timestamp             uint64
}

func (m *MetaData) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.BestBlockHeight)
	b = appendBytes(b, 2, m.BestBlockHash)
	b = appendUint64(b, 3, m.PrunedHeight)
	b = appendBytes(b, 5, m.AccumulatedDifficulty)
	b = appendUint64(b, 6, m.Timestamp)
	return b, nil
}

func (m *MetaData) Unmarshal(b []byte) error {
	*m = MetaData{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, b, &m.BestBlockHeight)
		case 2:
			return consumeBytes(typ, b, &m.BestBlockHash)
		case 3:
			return consumeUint64(typ, b, &m.PrunedHeight)
		case 5:
			return consumeBytes(typ, b, &m.AccumulatedDifficulty)
		case 6:
			return consumeUint64(typ, b, &m.Timestamp)
		}
		return 0, nil
	})
}

// MigrationProgress reports an in-flight database migration.
type MigrationProgress struct {
	CurrentBlock       uint64
	TotalBlocks        uint64
	ProgressPercentage float64
	CurrentDbVersion   uint64
	TargetDbVersion    uint64
}

func (m *MigrationProgress) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.CurrentBlock)
	b = appendUint64(b, 2, m.TotalBlocks)
	b = appendDouble(b, 3, m.ProgressPercentage)
	b = appendUint64(b, 4, m.CurrentDbVersion)
	b = appendUint64(b, 5, m.TargetDbVersion)
	return b, nil
}

func (m *MigrationProgress) Unmarshal(b []byte) error {
	*m = MigrationProgress{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, b, &m.CurrentBlock)
		case 2:
			return consumeUint64(typ, b, &m.TotalBlocks)
		case 3:
			return consumeDouble(typ, b, &m.ProgressPercentage)
		case 4:
			return consumeUint64(typ, b, &m.CurrentDbVersion)
		case 5:
			return consumeUint64(typ, b, &m.TargetDbVersion)
		}
		return 0, nil
	})
}

// ReadinessStatus carries a oneof: at most one of State and Migration is set.
type ReadinessStatus struct {
	State     *int32
	Migration *MigrationProgress
	Timestamp uint64
}

func (m *ReadinessStatus) Marshal() ([]byte, error) {
	var b []byte
	var err error
	switch {
	case m.State != nil:
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(*m.State)))
	case m.Migration != nil:
		if b, err = appendMessage(b, 2, m.Migration); err != nil {
			return nil, err
		}
	}
	b = appendUint64(b, 3, m.Timestamp)
	return b, nil
}

func (m *ReadinessStatus) Unmarshal(b []byte) error {
	*m = ReadinessStatus{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var state int32
			n, err := consumeInt32(typ, b, &state)
			if n > 0 {
				m.State, m.Migration = &state, nil
			}
			return n, err
		case 2:
			migration := &MigrationProgress{}
			n, err := consumeMessage(typ, b, migration)
			if n > 0 {
				m.State, m.Migration = nil, migration
			}
			return n, err
		case 3:
			return consumeUint64(typ, b, &m.Timestamp)
		}
		return 0, nil
	})
}

// GetNetworkStateResponse is the node's combined status snapshot.
type GetNetworkStateResponse struct {
	Metadata                       *MetaData
	InitialSyncAchieved            bool
	BaseNodeState                  int32
	FailedCheckpoints              bool
	Reward                         uint64
	Sha3xEstimatedHashRate         uint64
	MoneroRandomxEstimatedHashRate uint64
	NumConnections                 uint64
	TariRandomxEstimatedHashRate   uint64
	ReadinessStatus                *ReadinessStatus
}

func (m *GetNetworkStateResponse) Marshal() ([]byte, error) {
	var b []byte
	var err error
	if m.Metadata != nil {
		if b, err = appendMessage(b, 1, m.Metadata); err != nil {
			return nil, err
		}
	}
	b = appendBool(b, 2, m.InitialSyncAchieved)
	b = appendInt32(b, 3, m.BaseNodeState)
	b = appendBool(b, 4, m.FailedCheckpoints)
	b = appendUint64(b, 5, m.Reward)
	b = appendUint64(b, 6, m.Sha3xEstimatedHashRate)
	b = appendUint64(b, 7, m.MoneroRandomxEstimatedHashRate)
	b = appendUint64(b, 8, m.NumConnections)
	b = appendUint64(b, 10, m.TariRandomxEstimatedHashRate)
	if m.ReadinessStatus != nil {
		if b, err = appendMessage(b, 11, m.ReadinessStatus); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *GetNetworkStateResponse) Unmarshal(b []byte) error {
	*m = GetNetworkStateResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Metadata = &MetaData{}
			return consumeMessage(typ, b, m.Metadata)
		case 2:
			return consumeBool(typ, b, &m.InitialSyncAchieved)
		case 3:
			return consumeInt32(typ, b, &m.BaseNodeState)
		case 4:
			return consumeBool(typ, b, &m.FailedCheckpoints)
		case 5:
			return consumeUint64(typ, b, &m.Reward)
		case 6:
			return consumeUint64(typ, b, &m.Sha3xEstimatedHashRate)
		case 7:
			return consumeUint64(typ, b, &m.MoneroRandomxEstimatedHashRate)
		case 8:
			return consumeUint64(typ, b, &m.NumConnections)
		case 10:
			return consumeUint64(typ, b, &m.TariRandomxEstimatedHashRate)
		case 11:
			m.ReadinessStatus = &ReadinessStatus{}
			return consumeMessage(typ, b, m.ReadinessStatus)
		}
		return 0, nil
	})
}

// TipInfoResponse is the node's chain tip and sync flag.
type TipInfoResponse struct {
	Metadata            *MetaData
	InitialSyncAchieved bool
	BaseNodeState       int32
	FailedCheckpoints   bool
}

func (m *TipInfoResponse) Marshal() ([]byte, error) {
	var b []byte
	var err error
	if m.Metadata != nil {
		if b, err = appendMessage(b, 1, m.Metadata); err != nil {
			return nil, err
		}
	}
	b = appendBool(b, 2, m.InitialSyncAchieved)
	b = appendInt32(b, 3, m.BaseNodeState)
	b = appendBool(b, 4, m.FailedCheckpoints)
	return b, nil
}

func (m *TipInfoResponse) Unmarshal(b []byte) error {
	*m = TipInfoResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Metadata = &MetaData{}
			return consumeMessage(typ, b, m.Metadata)
		case 2:
			return consumeBool(typ, b, &m.InitialSyncAchieved)
		case 3:
			return consumeInt32(typ, b, &m.BaseNodeState)
		case 4:
			return consumeBool(typ, b, &m.FailedCheckpoints)
		}
		return 0, nil
	})
}

// SyncState is the node's sync state machine position.
type SyncState int32

const (
	SyncStateStartup        SyncState = 0
	SyncStateHeaderStarting SyncState = 1
	SyncStateHeader         SyncState = 2
	SyncStateBlockStarting  SyncState = 3
	SyncStateBlock          SyncState = 4
	SyncStateDone           SyncState = 5
)

// SyncProgressResponse reports where the node is in its initial sync.
type SyncProgressResponse struct {
	TipHeight             uint64
	LocalHeight           uint64
	State                 SyncState
	ShortDesc             string
	InitialConnectedPeers uint64
}

func (m *SyncProgressResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.TipHeight)
	b = appendUint64(b, 2, m.LocalHeight)
	b = appendInt32(b, 3, int32(m.State))
	b = appendString(b, 4, m.ShortDesc)
	b = appendUint64(b, 5, m.InitialConnectedPeers)
	return b, nil
}

func (m *SyncProgressResponse) Unmarshal(b []byte) error {
	*m = SyncProgressResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, b, &m.TipHeight)
		case 2:
			return consumeUint64(typ, b, &m.LocalHeight)
		case 3:
			var state int32
			n, err := consumeInt32(typ, b, &state)
			m.State = SyncState(state)
			return n, err
		case 4:
			return consumeString(typ, b, &m.ShortDesc)
		case 5:
			return consumeUint64(typ, b, &m.InitialConnectedPeers)
		}
		return 0, nil
	})
}

// GetBlocksRequest asks for the blocks at the given heights.
type GetBlocksRequest struct {
	Heights []uint64
}

func (m *GetBlocksRequest) Marshal() ([]byte, error) {
	return appendPackedUint64s(nil, 1, m.Heights), nil
}

func (m *GetBlocksRequest) Unmarshal(b []byte) error {
	*m = GetBlocksRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeUint64s(typ, b, &m.Heights)
		}
		return 0, nil
	})
}

type BlockHeader struct {
	Hash      []byte
	Version   uint32
	Height    uint64
	PrevHash  []byte
	Timestamp uint64
}

func (m *BlockHeader) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytes(b, 1, m.Hash)
	b = appendUint64(b, 2, uint64(m.Version))
	b = appendUint64(b, 3, m.Height)
	b = appendBytes(b, 4, m.PrevHash)
	b = appendUint64(b, 5, m.Timestamp)
	return b, nil
}

func (m *BlockHeader) Unmarshal(b []byte) error {
	*m = BlockHeader{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Hash)
		case 2:
			return consumeUint32(typ, b, &m.Version)
		case 3:
			return consumeUint64(typ, b, &m.Height)
		case 4:
			return consumeBytes(typ, b, &m.PrevHash)
		case 5:
			return consumeUint64(typ, b, &m.Timestamp)
		}
		return 0, nil
	})
}

// Block only decodes the header; body fields are skipped.
type Block struct {
	Header *BlockHeader
}

func (m *Block) Marshal() ([]byte, error) {
	if m.Header == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, m.Header)
}

func (m *Block) Unmarshal(b []byte) error {
	*m = Block{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Header = &BlockHeader{}
			return consumeMessage(typ, b, m.Header)
		}
		return 0, nil
	})
}

type HistoricalBlock struct {
	Confirmations uint64
	Block         *Block
}

func (m *HistoricalBlock) Marshal() ([]byte, error) {
	b := appendUint64(nil, 1, m.Confirmations)
	if m.Block == nil {
		return b, nil
	}
	return appendMessage(b, 2, m.Block)
}

func (m *HistoricalBlock) Unmarshal(b []byte) error {
	*m = HistoricalBlock{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, b, &m.Confirmations)
		case 2:
			m.Block = &Block{}
			return consumeMessage(typ, b, m.Block)
		}
		return 0, nil
	})
}

// NodeIdentity is the node's public key and advertised addresses.
type NodeIdentity struct {
	PublicKey       []byte
	PublicAddresses []string
	NodeId          []byte
}

func (m *NodeIdentity) Marshal() ([]byte, error) {
	b := appendBytes(nil, 1, m.PublicKey)
	for _, addr := range m.PublicAddresses {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, addr)
	}
	b = appendBytes(b, 3, m.NodeId)
	return b, nil
}

func (m *NodeIdentity) Unmarshal(b []byte) error {
	*m = NodeIdentity{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.PublicKey)
		case 2:
			var addr string
			n, err := consumeString(typ, b, &addr)
			if n > 0 {
				m.PublicAddresses = append(m.PublicAddresses, addr)
			}
			return n, err
		case 3:
			return consumeBytes(typ, b, &m.NodeId)
		}
		return 0, nil
	})
}

// Address is one of a peer's known addresses. LastSeen is formatted by the
// node as "2006-01-02 15:04:05.999999999" in UTC.
type Address struct {
	Address  []byte
	LastSeen string
}

func (m *Address) Marshal() ([]byte, error) {
	b := appendBytes(nil, 1, m.Address)
	b = appendString(b, 2, m.LastSeen)
	return b, nil
}

func (m *Address) Unmarshal(b []byte) error {
	*m = Address{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Address)
		case 2:
			return consumeString(typ, b, &m.LastSeen)
		}
		return 0, nil
	})
}

type Peer struct {
	PublicKey []byte
	NodeId    []byte
	Addresses []*Address
}

func (m *Peer) Marshal() ([]byte, error) {
	var err error
	b := appendBytes(nil, 1, m.PublicKey)
	b = appendBytes(b, 2, m.NodeId)
	for _, addr := range m.Addresses {
		if b, err = appendMessage(b, 3, addr); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *Peer) Unmarshal(b []byte) error {
	*m = Peer{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.PublicKey)
		case 2:
			return consumeBytes(typ, b, &m.NodeId)
		case 3:
			addr := &Address{}
			n, err := consumeMessage(typ, b, addr)
			if n > 0 {
				m.Addresses = append(m.Addresses, addr)
			}
			return n, err
		}
		return 0, nil
	})
}

type ListConnectedPeersResponse struct {
	ConnectedPeers []*Peer
}

func (m *ListConnectedPeersResponse) Marshal() ([]byte, error) {
	var b []byte
	var err error
	for _, p := range m.ConnectedPeers {
		if b, err = appendMessage(b, 1, p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *ListConnectedPeersResponse) Unmarshal(b []byte) error {
	*m = ListConnectedPeersResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			p := &Peer{}
			n, err := consumeMessage(typ, b, p)
			if n > 0 {
				m.ConnectedPeers = append(m.ConnectedPeers, p)
			}
			return n, err
		}
		return 0, nil
	})
}
