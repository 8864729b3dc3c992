package guest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	rterrors "github.com/wippyai/weval-runtime/errors"
	"github.com/wippyai/weval-runtime/lookup"
)

func TestEncodeKeyScalarAndRuntimeLayout(t *testing.T) {
	key, err := EncodeKey([]Arg{I32(7), RuntimeArg()})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if len(key) != 2*ArgHeaderLen {
		t.Fatalf("key length = %d, want %d", len(key), 2*ArgHeaderLen)
	}

	want := []byte{
		1, 0, 0, 0, // specialize
		0, 0, 0, 0, // ty = i32
		7, 0, 0, 0, 0, 0, 0, 0, // value union

		0, 0, 0, 0, // not specialized
		255, 0, 0, 0, // ty = none
		0, 0, 0, 0, 0, 0, 0, 0, // empty union
	}
	if !bytes.Equal(key, want) {
		t.Errorf("key = % x\nwant % x", key, want)
	}
}

func TestEncodeKeyBufferLayout(t *testing.T) {
	key, err := EncodeKey([]Arg{Memory([]byte{0xaa, 0xbb, 0xcc})})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if len(key) != ArgHeaderLen+8 {
		t.Fatalf("key length = %d, want %d", len(key), ArgHeaderLen+8)
	}

	if got := binary.LittleEndian.Uint32(key[0:4]); got != 1 {
		t.Errorf("specialize = %d, want 1", got)
	}
	if got := ArgKind(binary.LittleEndian.Uint32(key[4:8])); got != ArgBuffer {
		t.Errorf("ty = %v, want buffer", got)
	}
	if got := binary.LittleEndian.Uint32(key[8:12]); got != 3 {
		t.Errorf("len = %d, want 3", got)
	}
	if got := binary.LittleEndian.Uint32(key[12:16]); got != 8 {
		t.Errorf("padded_len = %d, want 8", got)
	}
	if !bytes.Equal(key[16:19], []byte{0xaa, 0xbb, 0xcc}) {
		t.Errorf("payload = % x", key[16:19])
	}
	if !bytes.Equal(key[19:24], make([]byte, 5)) {
		t.Errorf("padding = % x, want zeros", key[19:24])
	}
}

func TestEncodeKeyBufferAlreadyAligned(t *testing.T) {
	key, err := EncodeKey([]Arg{Memory(make([]byte, 16))})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if len(key) != ArgHeaderLen+16 {
		t.Errorf("key length = %d, want %d (no padding for aligned payload)", len(key), ArgHeaderLen+16)
	}
}

func TestEncodeKeyDeterminism(t *testing.T) {
	// Dirty backing bytes beyond the declared length must never leak into
	// the key.
	backing1 := []byte{1, 2, 3, 0xde, 0xad, 0xbe, 0xef, 0x99}
	backing2 := []byte{1, 2, 3, 0x11, 0x22, 0x33, 0x44, 0x55}

	args1 := []Arg{I32(9), Memory(backing1[:3]), RuntimeArg()}
	args2 := []Arg{I32(9), Memory(backing2[:3]), RuntimeArg()}

	key1, err := EncodeKey(args1)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	key2, err := EncodeKey(args2)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Errorf("keys differ for identical logical arguments:\n% x\n% x", key1, key2)
	}

	again, err := EncodeKey(args1)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if !bytes.Equal(key1, again) {
		t.Error("repeated encode of the same arguments differs")
	}

	// The key owns its bytes: mutating the source afterwards changes nothing.
	backing1[0] = 0xff
	if key1[ArgHeaderLen*2] == 0xff {
		t.Error("key aliases caller memory")
	}
}

func TestKeyRoundTrip(t *testing.T) {
	argSets := [][]Arg{
		nil,
		{I32(0)},
		{I32(7), RuntimeArg()},
		{I64(1 << 60), F32(2.5), F64(-1.25)},
		{Memory(nil)},
		{Memory([]byte{1})},
		{Memory([]byte{1, 2, 3, 4, 5, 6, 7, 8})},
		{RuntimeArg(), Memory([]byte("hello world")), Bool(true), I32(0xffffffff)},
	}

	for i, args := range argSets {
		key, err := EncodeKey(args)
		if err != nil {
			t.Fatalf("set %d: EncodeKey: %v", i, err)
		}
		back, err := DecodeKey(key)
		if err != nil {
			t.Fatalf("set %d: DecodeKey: %v", i, err)
		}
		if len(back) != len(args) {
			t.Fatalf("set %d: decoded %d args, want %d", i, len(back), len(args))
		}
		for j := range args {
			if back[j].Kind() != args[j].Kind() {
				t.Errorf("set %d arg %d: kind %v, want %v", i, j, back[j].Kind(), args[j].Kind())
			}
			if back[j].Raw() != args[j].Raw() && args[j].Kind() != ArgBuffer {
				t.Errorf("set %d arg %d: raw %#x, want %#x", i, j, back[j].Raw(), args[j].Raw())
			}
			if args[j].Kind() == ArgBuffer && !bytes.Equal(back[j].Bytes(), args[j].Bytes()) {
				t.Errorf("set %d arg %d: bytes % x, want % x", i, j, back[j].Bytes(), args[j].Bytes())
			}
		}
	}
}

func TestEncodeKeyGrowth(t *testing.T) {
	// Well past the initial capacity, so the writer doubles several times.
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i)
	}
	key, err := EncodeKey([]Arg{I64(1), Memory(payload), I32(2)})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	wantLen := ArgHeaderLen + ArgHeaderLen + padded(5000) + ArgHeaderLen
	if len(key) != wantLen {
		t.Fatalf("key length = %d, want %d", len(key), wantLen)
	}
	if !bytes.Equal(key[2*ArgHeaderLen:2*ArgHeaderLen+5000], payload) {
		t.Error("payload corrupted during growth")
	}
}

func TestEncodeKeyTooLarge(t *testing.T) {
	_, err := EncodeKey([]Arg{Memory(make([]byte, MaxKeyLen))})
	if err == nil {
		t.Fatal("EncodeKey accepted an over-cap buffer")
	}
	if !errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseEncode, Kind: rterrors.KindKeyTooLarge}) {
		t.Errorf("error = %v, want encode/key_too_large", err)
	}

	// The cap applies to the accumulated key, not a single argument.
	half := make([]byte, MaxKeyLen/2)
	_, err = EncodeKey([]Arg{Memory(half), Memory(half)})
	if err == nil {
		t.Fatal("EncodeKey accepted accumulated size past the cap")
	}

	// Just under the cap is fine.
	if _, err := EncodeKey([]Arg{Memory(make([]byte, MaxKeyLen-ArgHeaderLen))}); err != nil {
		t.Fatalf("EncodeKey rejected an in-cap buffer: %v", err)
	}
}

func TestDecodeKeyRejects(t *testing.T) {
	valid, err := EncodeKey([]Arg{I32(7)})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}

	mutate := func(off int, b byte) []byte {
		k := append([]byte(nil), valid...)
		k[off] = b
		return k
	}

	bufferKey := func(length, paddedLen uint32, payload []byte) []byte {
		k := make([]byte, ArgHeaderLen+len(payload))
		binary.LittleEndian.PutUint32(k[0:4], 1)
		binary.LittleEndian.PutUint32(k[4:8], uint32(ArgBuffer))
		binary.LittleEndian.PutUint32(k[8:12], length)
		binary.LittleEndian.PutUint32(k[12:16], paddedLen)
		copy(k[16:], payload)
		return k
	}

	tests := []struct {
		name string
		key  []byte
	}{
		{"truncated header", valid[:10]},
		{"specialize flag out of range", mutate(0, 2)},
		{"unknown type tag", mutate(4, 9)},
		{"scalar high union bytes", mutate(12, 1)},
		{"runtime with value tag", []byte{
			0, 0, 0, 0, 0, 0, 0, 0, // specialize=0, ty=i32
			0, 0, 0, 0, 0, 0, 0, 0,
		}},
		{"runtime with nonzero union", []byte{
			0, 0, 0, 0, 255, 0, 0, 0,
			1, 0, 0, 0, 0, 0, 0, 0,
		}},
		{"buffer padded length mismatch", bufferKey(3, 16, make([]byte, 16))},
		{"buffer truncated payload", bufferKey(3, 8, make([]byte, 4))},
		{"buffer nonzero padding", bufferKey(3, 8, []byte{1, 2, 3, 0, 0, 0, 0, 9})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeKey(tt.key)
			if err == nil {
				t.Fatal("DecodeKey accepted a malformed key")
			}
			if !errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseDecode, Kind: rterrors.KindInvalidData}) {
				t.Errorf("error = %v, want decode/invalid_data", err)
			}
		})
	}
}

// Binary search over the lookup table is only correct if the comparator
// induces a strict total order over real encoded keys, including keys
// whose variable-length buffer payloads straddle header boundaries.
func TestEncodedKeyOrderCorpus(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	type probe struct {
		id  uint32
		key []byte
	}

	seen := map[string]bool{}
	var corpus []probe
	for attempts := 0; len(corpus) < 1000 && attempts < 200000; attempts++ {
		id := uint32(rng.Intn(4))
		key, err := EncodeKey(randArgs(rng))
		if err != nil {
			t.Fatalf("EncodeKey: %v", err)
		}
		sig := fmt.Sprintf("%d|%x", id, key)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		corpus = append(corpus, probe{id, key})
	}
	if len(corpus) < 1000 {
		t.Fatalf("generated only %d unique keys", len(corpus))
	}

	for i, p := range corpus {
		if lookup.Compare(p.id, p.key, p.id, p.key) != 0 {
			t.Fatalf("corpus[%d] not equal to itself", i)
		}
	}

	sort.Slice(corpus, func(i, j int) bool {
		return lookup.Compare(corpus[i].id, corpus[i].key, corpus[j].id, corpus[j].key) < 0
	})

	// Every pair must agree with the sorted order and with its own
	// reversal; any intransitivity or asymmetry surfaces here.
	for i := 0; i < len(corpus); i++ {
		for j := i + 1; j < len(corpus); j++ {
			fwd := lookup.Compare(corpus[i].id, corpus[i].key, corpus[j].id, corpus[j].key)
			if fwd >= 0 {
				t.Fatalf("corpus[%d] does not sort strictly before corpus[%d] (cmp=%d)", i, j, fwd)
			}
			if back := lookup.Compare(corpus[j].id, corpus[j].key, corpus[i].id, corpus[i].key); back <= 0 {
				t.Fatalf("antisymmetry violated between corpus[%d] and corpus[%d]", i, j)
			}
		}
	}
}

func randArgs(rng *rand.Rand) []Arg {
	n := rng.Intn(4)
	args := make([]Arg, 0, n)
	for i := 0; i < n; i++ {
		// Narrow value ranges on purpose: shared prefixes and near-miss
		// keys are the adversarial cases for the comparator.
		switch rng.Intn(6) {
		case 0:
			args = append(args, I32(uint32(rng.Intn(4))))
		case 1:
			args = append(args, I64(uint64(rng.Intn(4))))
		case 2:
			args = append(args, F32(float32(rng.Intn(3))))
		case 3:
			args = append(args, F64(float64(rng.Intn(3))))
		case 4:
			b := make([]byte, rng.Intn(20))
			for j := range b {
				b[j] = byte(rng.Intn(3))
			}
			args = append(args, Memory(b))
		case 5:
			args = append(args, RuntimeArg())
		}
	}
	return args
}
