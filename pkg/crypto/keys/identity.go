/*
Package keys provides signing identities for Substrate accounts. Key
derivation and the sr25519 signature scheme are provided by the
go-substrate-rpc-client keyring, this package binds them to SS58 addresses
and the client's error categories.
*/
package keys

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
)

// Identity is an sr25519 keypair able to sign extrinsics. It's derived from a
// secret URI (mnemonic or hex seed with optional "//hard/soft" derivation
// path, "//Alice" for well-known development keys).
type Identity struct {
	pair signature.KeyringPair
}

// DeriveIdentity derives an Identity from the given secret URI. Derivation
// is deterministic: the same URI always produces the same key and address.
func DeriveIdentity(uri string) (*Identity, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: empty secret URI", subrpc.ErrInvalidSeed)
	}
	if strings.HasSuffix(uri, "///") {
		return nil, fmt.Errorf("%w: empty password in secret URI", subrpc.ErrInvalidSeed)
	}
	pair, err := signature.KeyringPairFromSecret(uri, address.Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", subrpc.ErrInvalidSeed, err)
	}
	if len(pair.PublicKey) != 32 {
		return nil, fmt.Errorf("%w: unexpected public key length %d", subrpc.ErrInvalidSeed, len(pair.PublicKey))
	}
	return &Identity{pair: pair}, nil
}

// Address returns SS58 address of the identity.
func (i *Identity) Address() string {
	return address.Encode(i.pair.PublicKey)
}

// PublicKey returns a copy of the 32-byte public key.
func (i *Identity) PublicKey() []byte {
	return bytes.Clone(i.pair.PublicKey)
}

// KeyringPair returns the underlying keyring pair for extrinsic signing.
func (i *Identity) KeyringPair() signature.KeyringPair {
	return i.pair
}

// Sign signs the given payload.
func (i *Identity) Sign(payload []byte) ([]byte, error) {
	sig, err := signature.Sign(payload, i.pair.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", subrpc.ErrSigning, err)
	}
	return sig, nil
}

// Verify checks the signature of the payload made by this identity.
func (i *Identity) Verify(payload, sig []byte) bool {
	ok, err := signature.Verify(payload, sig, i.pair.URI)
	return err == nil && ok
}

// Equals checks whether two identities have the same public key.
func (i *Identity) Equals(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return bytes.Equal(i.pair.PublicKey, other.pair.PublicKey)
}

// String implements the fmt.Stringer interface, it never prints the secret.
func (i *Identity) String() string {
	return i.Address()
}

// IsInvalidSeed is a convenience wrapper around errors.Is.
func IsInvalidSeed(err error) bool {
	return errors.Is(err, subrpc.ErrInvalidSeed)
}
