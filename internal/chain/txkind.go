package chain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

const addressLength = 32

// ParseAddress decodes a 0x-prefixed hex address, left-padding short forms such as "0x2".
func ParseAddress(s string) ([addressLength]byte, error) {
	var out [addressLength]byte
	h := strings.TrimPrefix(strings.ToLower(s), "0x")
	if h == "" || len(h) > 2*addressLength {
		return out, fmt.Errorf("invalid address %q", s)
	}
	h = strings.Repeat("0", 2*addressLength-len(h)) + h
	if _, err := hex.Decode(out[:], []byte(h)); err != nil {
		return out, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return out, nil
}

// EncodeInspectCall encodes the BCS TransactionKind of a single move call
// fn(&SharedObject, ID) suitable for devInspect:
//
//	TransactionKind::ProgrammableTransaction {
//	    inputs:   [Object(Shared{id, initial_shared_version, mutable: false}), Pure(object id)],
//	    commands: [MoveCall{package, module, fn, [], [Input(0), Input(1)]}],
//	}
func EncodeInspectCall(packageID, module, fn, sharedID string, sharedVersion uint64, objectID string) ([]byte, error) {
	pkg, err := ParseAddress(packageID)
	if err != nil {
		return nil, err
	}
	shared, err := ParseAddress(sharedID)
	if err != nil {
		return nil, err
	}
	obj, err := ParseAddress(objectID)
	if err != nil {
		return nil, err
	}

	w := &bcsWriter{}
	w.uleb(0) // ProgrammableTransaction

	w.uleb(2) // inputs
	w.uleb(1) // CallArg::Object
	w.uleb(1) // ObjectArg::SharedObject
	w.bytes(shared[:])
	w.u64(sharedVersion)
	w.boolean(false)
	w.uleb(0) // CallArg::Pure
	w.uleb(addressLength)
	w.bytes(obj[:])

	w.uleb(1) // commands
	w.uleb(0) // Command::MoveCall
	w.bytes(pkg[:])
	w.str(module)
	w.str(fn)
	w.uleb(0) // type arguments
	w.uleb(2) // arguments
	w.uleb(1) // Argument::Input
	w.u16(0)
	w.uleb(1)
	w.u16(1)
	return w.buf, nil
}

type bcsWriter struct {
	buf []byte
}

func (w *bcsWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *bcsWriter) boolean(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *bcsWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *bcsWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *bcsWriter) uleb(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

func (w *bcsWriter) str(s string) {
	w.uleb(uint64(len(s)))
	w.buf = append(w.buf, s...)
}
