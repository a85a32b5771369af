package protocol

import (
	"fmt"
	"strings"
)

// NodeType says who owns the base node process.
type NodeType string

const (
	// NodeTypeLocal is a node launched and managed on this machine.
	NodeTypeLocal NodeType = "local"
	// NodeTypeRemote is a node hosted elsewhere; its data is never touched.
	NodeTypeRemote NodeType = "remote"
)

func ParseNodeType(s string) (NodeType, error) {
	switch t := NodeType(strings.ToLower(strings.TrimSpace(s))); t {
	case NodeTypeLocal, NodeTypeRemote:
		return t, nil
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

func (t NodeType) IsRemote() bool { return t == NodeTypeRemote }

// Network is the chain the node runs on.
type Network string

const (
	NetworkMainnet   Network = "mainnet"
	NetworkNextnet   Network = "nextnet"
	NetworkEsmeralda Network = "esmeralda"
)

func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case NetworkMainnet, NetworkNextnet, NetworkEsmeralda:
		return n, nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}

func (n Network) String() string { return string(n) }

// Block is a (height, hash) pair with the hash as lowercase hex.
type Block struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}
