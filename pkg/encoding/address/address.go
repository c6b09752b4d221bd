/*
Package address implements SS58 account address encoding used by Substrate
chains: base58 over the network prefix, the account public key and a
blake2b-512 checksum.
*/
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultPrefix is the generic Substrate network prefix ("5..." addresses).
const DefaultPrefix uint16 = 42

// Prefix is the network prefix used by Encode and checked by Decode. It can be
// changed to the chain's ss58Format.
var Prefix = DefaultPrefix

// MaxPrefix is the largest prefix representable in two bytes.
const MaxPrefix = 16383

var checksumPrefix = []byte("SS58PRE")

var (
	errBadLength   = errors.New("invalid address length")
	errBadChecksum = errors.New("invalid address checksum")
)

// Encode returns SS58 address of the given public key using Prefix.
func Encode(pub []byte) string {
	s, _ := EncodeWithPrefix(pub, Prefix) // Prefix is always valid unless broken by user.
	return s
}

// EncodeWithPrefix returns SS58 address of the given public key using the
// given network prefix.
func EncodeWithPrefix(pub []byte, prefix uint16) (string, error) {
	if prefix > MaxPrefix {
		return "", fmt.Errorf("prefix %d is out of range", prefix)
	}
	csLen, err := checksumLen(len(pub))
	if err != nil {
		return "", err
	}
	data := append(encodePrefix(prefix), pub...)
	sum := checksum(data)
	return base58.Encode(append(data, sum[:csLen]...)), nil
}

// Decode decodes the given SS58 address into a public key checking that it
// uses Prefix.
func Decode(s string) ([]byte, error) {
	prefix, pub, err := DecodeAny(s)
	if err != nil {
		return nil, err
	}
	if prefix != Prefix {
		return nil, fmt.Errorf("wrong address prefix %d, expected %d", prefix, Prefix)
	}
	return pub, nil
}

// DecodeAny decodes the given SS58 address returning its network prefix and
// public key.
func DecodeAny(s string) (uint16, []byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return 0, nil, fmt.Errorf("base58: %w", err)
	}
	if len(raw) < 2 {
		return 0, nil, errBadLength
	}
	var (
		prefix  uint16
		preLen  int
		payload []byte
	)
	switch {
	case raw[0] < 64:
		prefix, preLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 3 {
			return 0, nil, errBadLength
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix, preLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return 0, nil, fmt.Errorf("invalid address prefix byte %#x", raw[0])
	}
	for _, csLen := range []int{2, 1} {
		pubLen := len(raw) - preLen - csLen
		if l, err := checksumLen(pubLen); err != nil || l != csLen {
			continue
		}
		payload = raw[:preLen+pubLen]
		sum := checksum(payload)
		if !bytes.Equal(sum[:csLen], raw[preLen+pubLen:]) {
			return 0, nil, errBadChecksum
		}
		return prefix, bytes.Clone(raw[preLen : preLen+pubLen]), nil
	}
	return 0, nil, errBadLength
}

// Validate checks that the given string is a valid address for Prefix.
func Validate(s string) error {
	_, err := Decode(s)
	return err
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
	return []byte{first, second}
}

func checksumLen(pubLen int) (int, error) {
	switch pubLen {
	case 1, 2, 4, 8:
		return 1, nil
	case 32, 33:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes of key", errBadLength, pubLen)
	}
}

func checksum(data []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(bytes.Clone(checksumPrefix), data...))
}
