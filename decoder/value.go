package decoder

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Kind is the ABI category of a decoded value
type Kind uint8

const (
	KindAddress Kind = iota
	KindUint
	KindInt
	KindBool
	KindBytes
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is one decoded event argument. Only the field matching Kind is set.
type Value struct {
	Kind  Kind
	Bytes []byte   // KindAddress, KindBytes
	Int   *big.Int // KindUint, KindInt
	Bool  bool
	Str   string
}

func (v Value) String() string {
	switch v.Kind {
	case KindAddress, KindBytes:
		return hexutil.Encode(v.Bytes)
	case KindUint, KindInt:
		if v.Int == nil {
			return "0"
		}
		return v.Int.String()
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return v.Str
	}
}

// newValue converts a value produced by the go-ethereum abi unpacker
func newValue(x interface{}) Value {
	switch t := x.(type) {
	case common.Address:
		return Value{Kind: KindAddress, Bytes: t.Bytes()}
	case common.Hash:
		return Value{Kind: KindBytes, Bytes: t.Bytes()}
	case *big.Int:
		if t.Sign() < 0 {
			return Value{Kind: KindInt, Int: new(big.Int).Set(t)}
		}
		return Value{Kind: KindUint, Int: new(big.Int).Set(t)}
	case uint8:
		return Value{Kind: KindUint, Int: new(big.Int).SetUint64(uint64(t))}
	case uint16:
		return Value{Kind: KindUint, Int: new(big.Int).SetUint64(uint64(t))}
	case uint32:
		return Value{Kind: KindUint, Int: new(big.Int).SetUint64(uint64(t))}
	case uint64:
		return Value{Kind: KindUint, Int: new(big.Int).SetUint64(t)}
	case int8:
		return Value{Kind: KindInt, Int: big.NewInt(int64(t))}
	case int16:
		return Value{Kind: KindInt, Int: big.NewInt(int64(t))}
	case int32:
		return Value{Kind: KindInt, Int: big.NewInt(int64(t))}
	case int64:
		return Value{Kind: KindInt, Int: big.NewInt(t)}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case string:
		return Value{Kind: KindString, Str: t}
	case []byte:
		return Value{Kind: KindBytes, Bytes: common.CopyBytes(t)}
	}

	// fixed size byte arrays (bytes1..bytes32) come back as [N]byte
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return Value{Kind: KindBytes, Bytes: b}
	}

	// arrays, slices and tuples are kept as their printed form
	return Value{Kind: KindString, Str: fmt.Sprint(x)}
}
