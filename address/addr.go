package address

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sigurn/crc16"
)

const (
	tagBounceable    byte = 0x11
	tagNonBounceable byte = 0x51
	tagTestnet       byte = 0x80

	// size of account id in std address
	dataLen = 32
	// tag + workchain + account id + crc16
	friendlyLen = 1 + 1 + dataLen + 2
)

var ErrInvalidAddress = errors.New("invalid address")

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

type flags struct {
	bounceable bool
	testnet    bool
}

// Address - std account address, workchain + 256 bit account id.
type Address struct {
	flags     flags
	workchain int32
	data      []byte
}

// NewAddressStd - bounceable mainnet address with the given account id
func NewAddressStd(workchain int32, data []byte) *Address {
	return &Address{
		flags:     flags{bounceable: true},
		workchain: workchain,
		data:      append([]byte{}, data...),
	}
}

func MustParseAddr(addr string) *Address {
	a, err := ParseAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddr - parses user-friendly address, both url safe and standard base64 alphabets are accepted
func ParseAddr(addr string) (*Address, error) {
	if len(addr) != 48 {
		return nil, fmt.Errorf("%w: incorrect length %d", ErrInvalidAddress, len(addr))
	}

	enc := base64.URLEncoding
	if strings.ContainsAny(addr, "+/") {
		enc = base64.StdEncoding
	}

	data, err := enc.DecodeString(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if len(data) != friendlyLen {
		return nil, fmt.Errorf("%w: incorrect decoded length %d", ErrInvalidAddress, len(data))
	}

	tag := data[0] &^ tagTestnet
	if tag != tagBounceable && tag != tagNonBounceable {
		return nil, fmt.Errorf("%w: unknown tag %x", ErrInvalidAddress, data[0])
	}

	checksum := binary.BigEndian.Uint16(data[friendlyLen-2:])
	if crc16.Checksum(data[:friendlyLen-2], crcTable) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	return &Address{
		flags:     parseFlags(data[0]),
		workchain: int32(int8(data[1])),
		data:      append([]byte{}, data[2:friendlyLen-2]...),
	}, nil
}

// ParseRawAddr - parses "workchain:hex" form, result is bounceable and not testnet only
func ParseRawAddr(addr string) (*Address, error) {
	wcStr, hexStr, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("%w: separator not found", ErrInvalidAddress)
	}

	wc, err := strconv.ParseInt(wcStr, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: bad workchain: %v", ErrInvalidAddress, err)
	}

	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad account id: %v", ErrInvalidAddress, err)
	}

	if len(data) != dataLen {
		return nil, fmt.Errorf("%w: account id should be %d bytes", ErrInvalidAddress, dataLen)
	}

	return NewAddressStd(int32(wc), data), nil
}

// ParseAny - accepts both user-friendly and raw forms
func ParseAny(addr string) (*Address, error) {
	if strings.Contains(addr, ":") {
		return ParseRawAddr(addr)
	}
	return ParseAddr(addr)
}

func (a *Address) String() string {
	return base64.URLEncoding.EncodeToString(a.friendly())
}

func (a *Address) StringRaw() string {
	return fmt.Sprintf("%d:%s", a.workchain, hex.EncodeToString(a.data))
}

func (a *Address) friendly() []byte {
	data := make([]byte, friendlyLen)
	data[0] = a.FlagsToByte()
	data[1] = byte(a.workchain)
	copy(data[2:], a.data)
	binary.BigEndian.PutUint16(data[friendlyLen-2:], a.Checksum())
	return data
}

func (a *Address) prepareChecksumData() []byte {
	data := make([]byte, friendlyLen-2)
	data[0] = a.FlagsToByte()
	data[1] = byte(a.workchain)
	copy(data[2:], a.data)
	return data
}

func (a *Address) Checksum() uint16 {
	return crc16.Checksum(a.prepareChecksumData(), crcTable)
}

func (a *Address) FlagsToByte() byte {
	tag := tagBounceable
	if !a.flags.bounceable {
		tag = tagNonBounceable
	}
	if a.flags.testnet {
		tag |= tagTestnet
	}
	return tag
}

func parseFlags(data byte) flags {
	return flags{
		bounceable: data&^tagTestnet == tagBounceable,
		testnet:    data&tagTestnet != 0,
	}
}

// Bounce - returns copy of address with bounce flag set to the given value
func (a *Address) Bounce(bounce bool) *Address {
	cp := a.Copy()
	cp.flags.bounceable = bounce
	return cp
}

// Testnet - returns copy of address with testnet only flag set to the given value
func (a *Address) Testnet(testnet bool) *Address {
	cp := a.Copy()
	cp.flags.testnet = testnet
	return cp
}

func (a *Address) Copy() *Address {
	return &Address{
		flags:     a.flags,
		workchain: a.workchain,
		data:      append([]byte{}, a.data...),
	}
}

func (a *Address) IsBounceable() bool {
	return a.flags.bounceable
}

func (a *Address) IsTestnetOnly() bool {
	return a.flags.testnet
}

func (a *Address) Workchain() int32 {
	return a.workchain
}

func (a *Address) Data() []byte {
	return a.data
}

// Equals - compares workchain and account id, flags are ignored
func (a *Address) Equals(b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.workchain == b.workchain && bytes.Equal(a.data, b.data)
}

func (a *Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	addr, err := ParseAny(string(data))
	if err != nil {
		return err
	}
	*a = *addr
	return nil
}
