package vaa

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
)

type (
	// VAA is a verifiable action approval of the Wormhole protocol
	VAA struct {
		// Version of the VAA schema
		Version uint8
		// GuardianSetIndex is the index of the guardian set that signed this VAA
		GuardianSetIndex uint32
		// Signatures of the guardians, strictly ascending by guardian index
		Signatures []*Signature

		// Timestamp when the VAA was created
		Timestamp time.Time
		// Nonce of the VAA
		Nonce uint32
		// Sequence of the VAA
		Sequence uint64
		// ConsistencyLevel of the VAA
		ConsistencyLevel uint8
		// EmitterChain the VAA was emitted on
		EmitterChain ChainID
		// EmitterAddress of the contract that emitted the Message
		EmitterAddress Address
		// Payload of the message
		Payload []byte
	}

	// ChainID of a Wormhole chain
	ChainID uint16

	// Address is a Wormhole protocol address, it contains the native chain's address. If the address data type of a
	// chain is < 32bytes the value is zero-padded on the left.
	Address [32]byte

	// Signature of a single guardian
	Signature struct {
		// Index of the guardian in the guardian set
		Index uint8
		// Signature data
		Signature SignatureData
	}

	// SignatureData is r(32) | s(32) | recovery id(1)
	SignatureData [65]byte
)

const (
	SupportedVAAVersion = 0x01

	// headerLength is version + guardian set index + signature count
	headerLength = 1 + 4 + 1
	// SignatureLength is guardian index + r + s + v
	SignatureLength = 1 + 65
	// bodyLength is the size of the fixed part of the body
	bodyLength = 4 + 4 + 2 + 32 + 8 + 1

	minVAALength = headerLength + bodyLength
)

// Compile-time check
var (
	_ encoding.BinaryMarshaler   = VAA{}
	_ encoding.BinaryUnmarshaler = &VAA{}
)

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, a)), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	addr, err := StringToAddress(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a SignatureData) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, a)), nil
}

func (a SignatureData) String() string {
	return hex.EncodeToString(a[:])
}

// R returns the r component of the signature.
func (a SignatureData) R() []byte {
	return a[0:32]
}

// S returns the s component of the signature.
func (a SignatureData) S() []byte {
	return a[32:64]
}

// RecoveryID returns the secp256k1 recovery id (0 or 1).
func (a SignatureData) RecoveryID() uint8 {
	return a[64]
}

// Chains this package knows by name. Any other uint16 is still a valid ChainID.
const (
	ChainIDUnset     ChainID = 0
	ChainIDSolana    ChainID = 1
	ChainIDEthereum  ChainID = 2
	ChainIDTerra     ChainID = 3
	ChainIDBSC       ChainID = 4
	ChainIDPolygon   ChainID = 5
	ChainIDAvalanche ChainID = 6
	ChainIDAlgorand  ChainID = 8
	ChainIDNear      ChainID = 15
	ChainIDSui       ChainID = 21
	ChainIDAptos     ChainID = 22
	ChainIDArbitrum  ChainID = 23
	ChainIDOptimism  ChainID = 24
	ChainIDBase      ChainID = 30
	ChainIDWormchain ChainID = 3104
)

var chainNames = map[ChainID]string{
	ChainIDSolana:    "solana",
	ChainIDEthereum:  "ethereum",
	ChainIDTerra:     "terra",
	ChainIDBSC:       "bsc",
	ChainIDPolygon:   "polygon",
	ChainIDAvalanche: "avalanche",
	ChainIDAlgorand:  "algorand",
	ChainIDNear:      "near",
	ChainIDSui:       "sui",
	ChainIDAptos:     "aptos",
	ChainIDArbitrum:  "arbitrum",
	ChainIDOptimism:  "optimism",
	ChainIDBase:      "base",
	ChainIDWormchain: "wormchain",
}

func (c ChainID) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown chain ID: %d", c)
}

// ChainIDFromString accepts either a known chain name or a decimal chain id.
func ChainIDFromString(s string) (ChainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return ChainID(n), nil
	}

	for id, name := range chainNames {
		if name == s {
			return id, nil
		}
	}

	return ChainIDUnset, fmt.Errorf("unknown chain ID: %s", s)
}

func malformed(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrMalformedVAA, format, args...)
}

// Unmarshal deserializes the binary representation of a VAA. Every failure wraps ErrMalformedVAA.
// The payload is everything after the fixed body and may be empty.
func Unmarshal(data []byte) (*VAA, error) {
	if len(data) < minVAALength {
		return nil, malformed("VAA is too short: %d bytes", len(data))
	}
	if data[0] != SupportedVAAVersion {
		return nil, malformed("unsupported VAA version: %d", data[0])
	}

	v := &VAA{
		Version:          data[0],
		GuardianSetIndex: binary.BigEndian.Uint32(data[1:5]),
	}

	numSignatures := int(data[5])
	bodyStart := headerLength + numSignatures*SignatureLength
	if len(data) < bodyStart+bodyLength {
		return nil, malformed("VAA with %d signatures is too short: %d bytes", numSignatures, len(data))
	}

	v.Signatures = make([]*Signature, numSignatures)
	for i := range v.Signatures {
		raw := data[headerLength+i*SignatureLength : headerLength+(i+1)*SignatureLength]
		sig := &Signature{Index: raw[0]}
		copy(sig.Signature[:], raw[1:])
		v.Signatures[i] = sig
	}

	unmarshalBody(data[bodyStart:], v)
	return v, nil
}

// unmarshalBody decodes body, which must hold at least bodyLength bytes.
func unmarshalBody(body []byte, v *VAA) {
	v.Timestamp = time.Unix(int64(binary.BigEndian.Uint32(body[0:4])), 0)
	v.Nonce = binary.BigEndian.Uint32(body[4:8])
	v.EmitterChain = ChainID(binary.BigEndian.Uint16(body[8:10]))
	copy(v.EmitterAddress[:], body[10:42])
	v.Sequence = binary.BigEndian.Uint64(body[42:50])
	v.ConsistencyLevel = body[50]
	v.Payload = append([]byte{}, body[bodyLength:]...)
}

// Marshal returns the binary representation of the VAA
func (v *VAA) Marshal() ([]byte, error) {
	if len(v.Signatures) > 255 {
		return nil, fmt.Errorf("too many signatures: %d", len(v.Signatures))
	}

	buf := new(bytes.Buffer)
	MustWrite(buf, binary.BigEndian, v.Version)
	MustWrite(buf, binary.BigEndian, v.GuardianSetIndex)

	MustWrite(buf, binary.BigEndian, uint8(len(v.Signatures))) // #nosec G115 -- checked above
	for _, sig := range v.Signatures {
		MustWrite(buf, binary.BigEndian, sig.Index)
		buf.Write(sig.Signature[:])
	}

	buf.Write(v.serializeBody())

	return buf.Bytes(), nil
}

// implement encoding.BinaryMarshaler interface for the VAA struct
func (v VAA) MarshalBinary() ([]byte, error) {
	return v.Marshal()
}

// implement encoding.BinaryUnmarshaler interface for the VAA struct
func (v *VAA) UnmarshalBinary(data []byte) error {
	vaa, err := Unmarshal(data)
	if err != nil {
		return err
	}

	*v = *vaa
	return nil
}

// MessageID returns a human-readable emitter_chain/emitter_address/sequence tuple.
func (v *VAA) MessageID() string {
	return fmt.Sprintf("%d/%s/%d", v.EmitterChain, v.EmitterAddress, v.Sequence)
}

/*
SECURITY: Do not change this code! Changing it could result in two different hashes for
the same observation. But xDapps rely on the hash of an observation for replay protection.
*/
func (v *VAA) serializeBody() []byte {
	buf := new(bytes.Buffer)
	MustWrite(buf, binary.BigEndian, uint32(v.Timestamp.Unix())) // #nosec G115 -- This conversion is safe until year 2106
	MustWrite(buf, binary.BigEndian, v.Nonce)
	MustWrite(buf, binary.BigEndian, v.EmitterChain)
	buf.Write(v.EmitterAddress[:])
	MustWrite(buf, binary.BigEndian, v.Sequence)
	MustWrite(buf, binary.BigEndian, v.ConsistencyLevel)
	buf.Write(v.Payload)

	return buf.Bytes()
}

// MustWrite calls binary.Write and panics on errors
func MustWrite(w io.Writer, order binary.ByteOrder, data interface{}) {
	if err := binary.Write(w, order, data); err != nil {
		panic(fmt.Errorf("failed to write binary data: %v", data).Error())
	}
}

// StringToAddress converts a hex-encoded address into a vaa.Address
func StringToAddress(value string) (Address, error) {
	var address Address

	if len(value) < 2 {
		return address, fmt.Errorf("value must be at least 1 byte")
	}

	value = strings.TrimPrefix(value, "0x")

	res, err := hex.DecodeString(value)
	if err != nil {
		return address, err
	}

	return BytesToAddress(res)
}

func BytesToAddress(b []byte) (Address, error) {
	var address Address
	if len(b) > 32 {
		return address, fmt.Errorf("value must be no more than 32 bytes")
	}

	copy(address[32-len(b):], b)
	return address, nil
}
