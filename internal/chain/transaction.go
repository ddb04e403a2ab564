package chain

import (
	"fmt"
	"strconv"

	"gallery-service/internal/codec"
)

// ArgumentKind distinguishes object references from pure values.
type ArgumentKind string

const (
	ArgObject ArgumentKind = "object"
	ArgPure   ArgumentKind = "pure"
)

// Argument is one move call argument. Pure u64 values are carried as decimal strings so
// JavaScript wallets do not lose precision.
type Argument struct {
	Kind     ArgumentKind `json:"kind"`
	ObjectID string       `json:"objectId,omitempty"`
	Type     string       `json:"type,omitempty"`
	Value    any          `json:"value,omitempty"`
}

// MoveCall is a single programmable transaction command.
type MoveCall struct {
	Target        string     `json:"target"`
	TypeArguments []string   `json:"typeArguments"`
	Arguments     []Argument `json:"arguments"`
}

// Transaction is an unsigned transaction description handed to the wallet for signing.
type Transaction struct {
	Calls []MoveCall `json:"calls"`
}

// Target formats a fully qualified move function or struct name.
func Target(packageID, module, name string) string {
	return packageID + "::" + module + "::" + name
}

// Object references an on-chain object.
func Object(id string) Argument {
	return Argument{Kind: ArgObject, ObjectID: id}
}

// Pure wraps a BCS-encodable value of the given move type.
func Pure(moveType string, value any) Argument {
	return Argument{Kind: ArgPure, Type: moveType, Value: value}
}

func pureU64(v uint64) Argument {
	return Pure("u64", strconv.FormatUint(v, 10))
}

func pureU64Vector(vs [3]uint64) Argument {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.FormatUint(v, 10)
	}
	return Pure("vector<u64>", out)
}

// Builder builds gallery contract transactions for one package.
type Builder struct {
	packageID string
}

func NewBuilder(packageID string) *Builder {
	return &Builder{packageID: packageID}
}

func (b *Builder) check(kioskID, capID string) error {
	if b.packageID == "" {
		return fmt.Errorf("gallery package id is not configured")
	}
	if kioskID == "" || capID == "" {
		return fmt.Errorf("kiosk id and owner cap id are required")
	}
	return nil
}

// SetSceneConfig builds set_scene_config(kiosk, cap, config).
func (b *Builder) SetSceneConfig(kioskID, capID, configJSON string) (*Transaction, error) {
	if err := b.check(kioskID, capID); err != nil {
		return nil, err
	}
	return &Transaction{Calls: []MoveCall{{
		Target:        Target(b.packageID, GalleryModule, FnSetSceneConfig),
		TypeArguments: []string{},
		Arguments: []Argument{
			Object(kioskID),
			Object(capID),
			Pure("0x1::string::String", configJSON),
		},
	}}}, nil
}

// SetObjectProperties builds set_object_properties(kiosk, cap, object_id, displayed,
// position, rotation, scale) from an already encoded transform.
func (b *Builder) SetObjectProperties(kioskID, capID, objectID string, t codec.ContractTransform) (*Transaction, error) {
	if err := b.check(kioskID, capID); err != nil {
		return nil, err
	}
	if objectID == "" {
		return nil, fmt.Errorf("object id is required")
	}
	return &Transaction{Calls: []MoveCall{{
		Target:        Target(b.packageID, GalleryModule, FnSetObjectProperties),
		TypeArguments: []string{},
		Arguments: []Argument{
			Object(kioskID),
			Object(capID),
			Pure("0x2::object::ID", objectID),
			Pure("bool", t.Displayed),
			pureU64Vector(t.Position),
			pureU64Vector(t.Rotation),
			pureU64(t.Scale),
		},
	}}}, nil
}
