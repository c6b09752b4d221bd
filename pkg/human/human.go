/*
Package human converts decoded chain values to human-readable form: integers
are grouped by thousands, account IDs become SS58 addresses, byte strings and
hashes are hex-encoded and structures become objects with camelCase keys in
field order.
*/
package human

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
)

var (
	bigIntType    = reflect.TypeOf((*big.Int)(nil))
	u128Type      = reflect.TypeOf(types.U128{})
	ucompactType  = reflect.TypeOf(types.UCompact{})
	accountIDType = reflect.TypeOf(types.AccountID{})
	hashType      = reflect.TypeOf(types.Hash{})
	digestType    = reflect.TypeOf(types.DigestItem{})
)

// Value returns a JSON-friendly representation of v. Structures are returned
// as json.OrderedObject.
func Value(v any) any {
	if v == nil {
		return nil
	}
	return convert(reflect.ValueOf(v))
}

// String returns compact JSON of Value(v).
func String(v any) string {
	b, err := json.Marshal(Value(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Indent returns indented JSON of Value(v).
func Indent(v any) string {
	b, err := json.MarshalIndent(Value(v), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// JSON reformats raw JSON (like RPC results) keeping the order of object keys.
func JSON(raw []byte) (string, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseOrderedObject()
	var v any
	if err := d.Decode(&v); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func convert(v reflect.Value) any {
	switch v.Type() {
	case bigIntType:
		if v.IsNil() {
			return "0"
		}
		return Number(v.Interface().(*big.Int))
	case u128Type:
		return Number(v.Interface().(types.U128).Int)
	case ucompactType:
		c := v.Interface().(types.UCompact)
		return Number((*big.Int)(&c))
	case accountIDType:
		id := v.Interface().(types.AccountID)
		return address.Encode(id[:])
	case hashType:
		h := v.Interface().(types.Hash)
		return h.Hex()
	case digestType:
		s, err := codec.EncodeToHex(v.Interface())
		if err != nil {
			return nil
		}
		return s
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return convert(v.Elem())
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return group(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return group(strconv.FormatUint(v.Uint(), 10))
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return "0x" + hex.EncodeToString(b)
		}
		res := make([]any, v.Len())
		for i := range res {
			res[i] = convert(v.Index(i))
		}
		return res
	case reflect.Struct:
		var (
			t   = v.Type()
			obj = make(json.OrderedObject, 0, t.NumField())
		)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			obj = append(obj, json.Member{Key: fieldName(f), Value: convert(v.Field(i))})
		}
		return obj
	}
	return fmt.Sprintf("%v", v.Interface())
}

// Number formats an integer with thousands separators, nil is zero.
func Number(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return group(n.String())
}

func group(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	r := []rune(f.Name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
