package registry

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
)

// Codec converts between Go values and SCALE encoding of a single type.
type Codec interface {
	// Encode converts a user-supplied argument into SCALE bytes.
	Encode(arg any) ([]byte, error)
	// Decode decodes a value from the beginning of data returning it along
	// with the number of bytes consumed.
	Decode(data []byte) (any, int, error)
	// Zero returns the empty value of the type.
	Zero() any
	// String returns the type name.
	String() string
}

type scaleCodec[T any] struct {
	name  string
	parse func(any) (T, error)
}

// NewCodec creates a Codec for the type T decodable by the SCALE codec. parse
// converts user arguments to T, it can be nil for decode-only types.
func NewCodec[T any](name string, parse func(any) (T, error)) Codec {
	return scaleCodec[T]{name: name, parse: parse}
}

func (c scaleCodec[T]) Encode(arg any) ([]byte, error) {
	var (
		v   T
		err error
	)
	switch a := arg.(type) {
	case T:
		v = a
	default:
		if c.parse == nil {
			return nil, fmt.Errorf("%w: %s can't be built from %T", subrpc.ErrInvalidArgument, c.name, arg)
		}
		v, err = c.parse(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", subrpc.ErrInvalidArgument, c.name, err)
		}
	}
	b, err := codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", subrpc.ErrInvalidArgument, c.name, err)
	}
	return b, nil
}

func (c scaleCodec[T]) Decode(data []byte) (any, int, error) {
	var (
		v T
		r = bytes.NewReader(data)
	)
	if err := scale.NewDecoder(r).Decode(&v); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", c.name, err)
	}
	return v, len(data) - r.Len(), nil
}

func (c scaleCodec[T]) Zero() any {
	var v T
	return v
}

func (c scaleCodec[T]) String() string {
	return c.name
}

// Codecs for the types used by the default registry.
var (
	U8        = NewCodec("u8", parseUint[types.U8](8))
	U32       = NewCodec("u32", parseUint[types.U32](32))
	U64       = NewCodec("u64", parseUint[types.U64](64))
	Balance   = NewCodec("u128", parseU128)
	Compact   = NewCodec("Compact<u128>", parseCompact)
	Bytes     = NewCodec("Bytes", parseBytes)
	Hash      = NewCodec("H256", parseHash)
	AccountID = NewCodec("AccountId32", parseAccountID)
	Address   = NewCodec("MultiAddress", parseMultiAddress)
	Account   = NewCodec[AccountInfo]("AccountInfo", nil)
	Kitty     = NewCodec("Kitty", parseKitty)
	Claim     = NewCodec[ClaimInfo]("(AccountId32, u32)", nil)
	Aura      = NewCodec[[]types.AccountID]("Vec<AuraId>", nil)
	Version   = NewCodec[RuntimeVersion]("RuntimeVersion", nil)
)

var errUnsupported = errors.New("unsupported argument type")

// toBig converts integer-like arguments to *big.Int.
func toBig(arg any) (*big.Int, error) {
	switch a := arg.(type) {
	case int:
		return big.NewInt(int64(a)), nil
	case int8:
		return big.NewInt(int64(a)), nil
	case int16:
		return big.NewInt(int64(a)), nil
	case int32:
		return big.NewInt(int64(a)), nil
	case int64:
		return big.NewInt(a), nil
	case uint:
		return new(big.Int).SetUint64(uint64(a)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(a)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(a)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(a)), nil
	case uint64:
		return new(big.Int).SetUint64(a), nil
	case *big.Int:
		if a == nil {
			return nil, errors.New("nil integer")
		}
		return new(big.Int).Set(a), nil
	case *uint256.Int:
		if a == nil {
			return nil, errors.New("nil integer")
		}
		return a.ToBig(), nil
	case types.U128:
		if a.Int == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(a.Int), nil
	case string:
		b, ok := new(big.Int).SetString(strings.ReplaceAll(a, ",", ""), 10)
		if !ok {
			return nil, fmt.Errorf("bad number %q", a)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w %T", errUnsupported, arg)
}

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func parseUint[T unsigned](bits int) func(any) (T, error) {
	return func(arg any) (T, error) {
		if s, ok := arg.(string); ok {
			v, err := strconv.ParseUint(strings.ReplaceAll(s, ",", ""), 10, bits)
			if err != nil {
				return 0, err
			}
			return T(v), nil
		}
		b, err := toBig(arg)
		if err != nil {
			return 0, err
		}
		if b.Sign() < 0 || b.BitLen() > bits {
			return 0, fmt.Errorf("%s doesn't fit into u%d", b, bits)
		}
		return T(b.Uint64()), nil
	}
}

func parseU128(arg any) (types.U128, error) {
	b, err := toBig(arg)
	if err != nil {
		return types.U128{}, err
	}
	u, overflow := uint256.FromBig(b)
	if b.Sign() < 0 || overflow || u.BitLen() > 128 {
		return types.U128{}, fmt.Errorf("%s doesn't fit into u128", b)
	}
	return types.NewU128(*u.ToBig()), nil
}

func parseCompact(arg any) (types.UCompact, error) {
	v, err := parseU128(arg)
	if err != nil {
		return types.UCompact{}, err
	}
	return types.NewUCompact(v.Int), nil
}

func parseBytes(arg any) (types.Bytes, error) {
	switch a := arg.(type) {
	case []byte:
		return types.NewBytes(a), nil
	case string:
		if strings.HasPrefix(a, "0x") {
			b, err := codec.HexDecodeString(a)
			if err != nil {
				return nil, err
			}
			return types.NewBytes(b), nil
		}
		return types.NewBytes([]byte(a)), nil
	}
	return nil, fmt.Errorf("%w %T", errUnsupported, arg)
}

func parseHash(arg any) (types.Hash, error) {
	var b []byte
	switch a := arg.(type) {
	case string:
		var err error
		b, err = codec.HexDecodeString(a)
		if err != nil {
			return types.Hash{}, err
		}
	case []byte:
		b = a
	default:
		return types.Hash{}, fmt.Errorf("%w %T", errUnsupported, arg)
	}
	if len(b) != len(types.Hash{}) {
		return types.Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	return types.NewHash(b), nil
}

// parseAccountID accepts SS58 addresses with any prefix, raw public keys and
// anything that has a public key (like keys.Identity).
func parseAccountID(arg any) (types.AccountID, error) {
	var (
		id  types.AccountID
		pub []byte
		err error
	)
	switch a := arg.(type) {
	case string:
		if strings.HasPrefix(a, "0x") {
			pub, err = hex.DecodeString(a[2:])
		} else {
			_, pub, err = address.DecodeAny(a)
		}
		if err != nil {
			return id, err
		}
	case []byte:
		pub = a
	case [32]byte:
		pub = a[:]
	case interface{ PublicKey() []byte }:
		pub = a.PublicKey()
	default:
		return id, fmt.Errorf("%w %T", errUnsupported, arg)
	}
	if len(pub) != len(id) {
		return id, fmt.Errorf("account id must be %d bytes, got %d", len(id), len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

func parseMultiAddress(arg any) (types.MultiAddress, error) {
	id, err := parseAccountID(arg)
	if err != nil {
		return types.MultiAddress{}, err
	}
	return types.MultiAddress{IsID: true, AsID: id}, nil
}

func parseKitty(arg any) ([16]byte, error) {
	var k [16]byte
	b, err := parseBytes(arg)
	if err != nil {
		return k, err
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("kitty DNA must be %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}
