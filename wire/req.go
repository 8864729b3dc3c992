package wire

import (
	"encoding/binary"
	"fmt"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
)

// ReqNodeLen is the size of one request node in guest memory.
const ReqNodeLen = 28

// Request node field offsets.
const (
	reqNext        = 0
	reqPrev        = 4
	reqFuncID      = 8
	reqFunc        = 12
	reqArgBuf      = 16
	reqArgLen      = 20
	reqSpecialized = 24
)

// ReqNode is a decoded pending request node. Pointer fields hold guest
// addresses; zero is the null pointer.
type ReqNode struct {
	Next        uint32
	Prev        uint32
	FuncID      uint32
	Func        uint32 // generic function pointer
	ArgBuf      uint32 // address of the argument key bytes
	ArgLen      uint32 // key length in bytes
	Specialized uint32 // address of the slot receiving the resolved pointer
}

// ReadReqNode decodes the request node at addr.
func ReadReqNode(m wevalruntime.Memory, addr uint32) (ReqNode, error) {
	buf, err := m.Read(addr, ReqNodeLen)
	if err != nil {
		return ReqNode{}, err
	}
	return ReqNode{
		Next:        binary.LittleEndian.Uint32(buf[reqNext:]),
		Prev:        binary.LittleEndian.Uint32(buf[reqPrev:]),
		FuncID:      binary.LittleEndian.Uint32(buf[reqFuncID:]),
		Func:        binary.LittleEndian.Uint32(buf[reqFunc:]),
		ArgBuf:      binary.LittleEndian.Uint32(buf[reqArgBuf:]),
		ArgLen:      binary.LittleEndian.Uint32(buf[reqArgLen:]),
		Specialized: binary.LittleEndian.Uint32(buf[reqSpecialized:]),
	}, nil
}

// WriteReqNode encodes node at addr.
func WriteReqNode(m wevalruntime.Memory, addr uint32, node ReqNode) error {
	var buf [ReqNodeLen]byte
	binary.LittleEndian.PutUint32(buf[reqNext:], node.Next)
	binary.LittleEndian.PutUint32(buf[reqPrev:], node.Prev)
	binary.LittleEndian.PutUint32(buf[reqFuncID:], node.FuncID)
	binary.LittleEndian.PutUint32(buf[reqFunc:], node.Func)
	binary.LittleEndian.PutUint32(buf[reqArgBuf:], node.ArgBuf)
	binary.LittleEndian.PutUint32(buf[reqArgLen:], node.ArgLen)
	binary.LittleEndian.PutUint32(buf[reqSpecialized:], node.Specialized)
	return m.Write(addr, buf[:])
}

// PendingRequest is one harvested request: the node's guest address, the
// decoded node, and a view of its argument key.
type PendingRequest struct {
	Addr uint32
	Node ReqNode
	Key  []byte
}

// CollectPending walks the pending request list and returns the requests
// in list order, most recently queued first. headPtr is the address of
// the list head pointer, as returned by the "weval.pending.head" export.
// Key slices alias guest memory.
//
// The walk verifies the doubly-linked structure as it goes: a node whose
// prev pointer disagrees with the walk, or a node reached twice, fails
// with a bad chain error.
func CollectPending(m wevalruntime.Memory, headPtr uint32) ([]PendingRequest, error) {
	head, err := m.ReadU32(headPtr)
	if err != nil {
		return nil, err
	}

	var out []PendingRequest
	seen := make(map[uint32]bool)
	prev := uint32(0)
	for addr := head; addr != 0; {
		if seen[addr] {
			return nil, errors.BadChain(chainPath(len(out)),
				fmt.Sprintf("node 0x%x links back into the list", addr))
		}
		seen[addr] = true

		node, err := ReadReqNode(m, addr)
		if err != nil {
			return nil, err
		}
		if node.Prev != prev {
			return nil, errors.BadChain(chainPath(len(out)),
				fmt.Sprintf("node 0x%x prev is 0x%x, want 0x%x", addr, node.Prev, prev))
		}
		key, err := m.Read(node.ArgBuf, node.ArgLen)
		if err != nil {
			return nil, err
		}

		out = append(out, PendingRequest{Addr: addr, Node: node, Key: key})
		prev = addr
		addr = node.Next
	}
	return out, nil
}

func chainPath(i int) []string {
	return []string{fmt.Sprintf("pending[%d]", i)}
}
