package wallet

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/coins"
)

// Envelope fields, encoded in protobuf wire format with fixed field order,
// so the same message always gives the same bytes.
const (
	envWorkchain protowire.Number = 1
	envAccountID protowire.Number = 2
	envStateInit protowire.Number = 3
	envSignature protowire.Number = 4
	envBody      protowire.Number = 5

	bodySubwallet  protowire.Number = 1
	bodyValidUntil protowire.Number = 2
	bodySeqno      protowire.Number = 3
	bodyMessage    protowire.Number = 4

	msgMode      protowire.Number = 1
	msgWorkchain protowire.Number = 2
	msgAccountID protowire.Number = 3
	msgAmount    protowire.Number = 4
	msgBounce    protowire.Number = 5
	msgPayload   protowire.Number = 6

	initVersion   protowire.Number = 1
	initPublicKey protowire.Number = 2
	initSubwallet protowire.Number = 3
)

// OutMessage - single transfer instruction executed by wallet contract
type OutMessage struct {
	Mode    uint8
	To      *address.Address
	Amount  coins.Coins
	Bounce  bool
	Payload []byte
}

// Body - signed part of external message
type Body struct {
	Subwallet  uint32
	ValidUntil uint32
	Seqno      uint32
	Messages   []OutMessage
}

type Envelope struct {
	Wallet    *address.Address
	StateInit *StateInit
	Signature []byte
	Body      *Body

	// raw body bytes, signature is checked against hash of them
	bodyData []byte
}

func (b *Body) marshal() []byte {
	var buf []byte
	buf = appendVarint(buf, bodySubwallet, uint64(b.Subwallet))
	buf = appendVarint(buf, bodyValidUntil, uint64(b.ValidUntil))
	buf = appendVarint(buf, bodySeqno, uint64(b.Seqno))

	for _, m := range b.Messages {
		var mb []byte
		mb = appendVarint(mb, msgMode, uint64(m.Mode))
		mb = appendVarint(mb, msgWorkchain, protowire.EncodeZigZag(int64(m.To.Workchain())))
		mb = appendBytes(mb, msgAccountID, m.To.Data())
		mb = appendBytes(mb, msgAmount, m.Amount.Nano().Bytes())
		if m.Bounce {
			mb = appendVarint(mb, msgBounce, 1)
		}
		if len(m.Payload) > 0 {
			mb = appendBytes(mb, msgPayload, m.Payload)
		}
		buf = appendBytes(buf, bodyMessage, mb)
	}
	return buf
}

// Hash - what is signed by wallet key
func (b *Body) Hash() []byte {
	h := sha256.Sum256(b.marshal())
	return h[:]
}

func (e *Envelope) marshal() []byte {
	var buf []byte
	buf = appendVarint(buf, envWorkchain, protowire.EncodeZigZag(int64(e.Wallet.Workchain())))
	buf = appendBytes(buf, envAccountID, e.Wallet.Data())
	if e.StateInit != nil {
		var sb []byte
		sb = appendVarint(sb, initVersion, uint64(e.StateInit.Version))
		sb = appendBytes(sb, initPublicKey, e.StateInit.PublicKey)
		sb = appendVarint(sb, initSubwallet, uint64(e.StateInit.Subwallet))
		buf = appendBytes(buf, envStateInit, sb)
	}
	buf = appendBytes(buf, envSignature, e.Signature)
	buf = appendBytes(buf, envBody, e.bodyData)
	return buf
}

// Verify - checks body signature
func (e *Envelope) Verify(pubKey ed25519.PublicKey) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(e.Signature) != ed25519.SignatureSize {
		return false
	}
	h := sha256.Sum256(e.bodyData)
	return ed25519.Verify(pubKey, h[:], e.Signature)
}

// MessageHash - hash of the serialized envelope, ledger returns the same one on acceptance
func MessageHash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var (
		env     Envelope
		wc      int64
		id      []byte
		hasBody bool
	)

	err := walkFields(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case envWorkchain:
			wc = protowire.DecodeZigZag(v)
		case envAccountID:
			id = b
		case envStateInit:
			si, err := decodeStateInit(b)
			if err != nil {
				return fmt.Errorf("state init: %w", err)
			}
			env.StateInit = si
		case envSignature:
			env.Signature = append([]byte{}, b...)
		case envBody:
			body, err := decodeBody(b)
			if err != nil {
				return fmt.Errorf("body: %w", err)
			}
			env.Body = body
			env.bodyData = append([]byte{}, b...)
			hasBody = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	if !hasBody || len(env.Signature) == 0 {
		return nil, fmt.Errorf("%w: body or signature is missing", ErrInvalidEnvelope)
	}
	if env.Wallet, err = newAddress(wc, id); err != nil {
		return nil, fmt.Errorf("%w: wallet: %v", ErrInvalidEnvelope, err)
	}
	return &env, nil
}

func decodeBody(data []byte) (*Body, error) {
	var body Body
	err := walkFields(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case bodySubwallet:
			body.Subwallet = uint32(v)
		case bodyValidUntil:
			body.ValidUntil = uint32(v)
		case bodySeqno:
			body.Seqno = uint32(v)
		case bodyMessage:
			msg, err := decodeOutMessage(b)
			if err != nil {
				return fmt.Errorf("message %d: %w", len(body.Messages), err)
			}
			body.Messages = append(body.Messages, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &body, nil
}

func decodeOutMessage(data []byte) (*OutMessage, error) {
	var (
		msg OutMessage
		wc  int64
		id  []byte
		amt []byte
	)
	err := walkFields(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case msgMode:
			msg.Mode = uint8(v)
		case msgWorkchain:
			wc = protowire.DecodeZigZag(v)
		case msgAccountID:
			id = b
		case msgAmount:
			amt = b
		case msgBounce:
			msg.Bounce = v != 0
		case msgPayload:
			msg.Payload = append([]byte{}, b...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if msg.To, err = newAddress(wc, id); err != nil {
		return nil, err
	}
	if msg.Amount, err = coins.FromNanoTON(new(big.Int).SetBytes(amt)); err != nil {
		return nil, err
	}
	msg.To = msg.To.Bounce(msg.Bounce)
	return &msg, nil
}

func decodeStateInit(data []byte) (*StateInit, error) {
	var (
		ver       Version
		pubKey    []byte
		subWallet uint32
	)
	err := walkFields(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case initVersion:
			ver = Version(v)
		case initPublicKey:
			pubKey = b
		case initSubwallet:
			subWallet = uint32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetStateInit(pubKey, ver, subWallet)
}

func newAddress(wc int64, id []byte) (*address.Address, error) {
	if wc < -128 || wc > 127 {
		return nil, fmt.Errorf("%w: workchain %d out of range", address.ErrInvalidAddress, wc)
	}
	if len(id) != 32 {
		return nil, fmt.Errorf("%w: account id should be 32 bytes", address.ErrInvalidAddress)
	}
	return address.NewAddressStd(int32(wc), id), nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// walkFields - iterates over varint and bytes fields, other wire types are skipped
func walkFields(data []byte, fn func(num protowire.Number, v uint64, b []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			if err := fn(num, 0, b); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}
