package wallet

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/coins"
)

// DefaultMessageTTL - ledger drops external messages after expiration,
// it bounds the time stale signed message can be replayed
const DefaultMessageTTL = 60 * time.Second

// max out messages per external message for v3 wallet
const maxMessagesV3 = 4

const (
	CarryAllRemainingBalance       = 128
	CarryAllRemainingIncomingValue = 64
	DestroyAccountIfZero           = 32
	IgnoreErrors                   = 2
	PayGasSeparately               = 1
)

// Intent - what should be transferred, immutable once passed to Build
type Intent struct {
	// user-friendly or raw destination address
	To string
	// in nano (smallest units), non-negative integer
	Amount string
	// nil - take from destination address flag
	Bounce *bool
	// text comment, cannot be used with Payload
	Comment string
	// raw body for destination contract
	Payload []byte
	// send mode, nil - PayGasSeparately+IgnoreErrors
	Mode *uint8
}

func BounceFlag(v bool) *bool {
	return &v
}

func SendMode(v uint8) *uint8 {
	return &v
}

// CreateCommentPayload - text comment body, 32 zero bits op code followed by text
func CreateCommentPayload(text string) []byte {
	return append(binary.BigEndian.AppendUint32(nil, 0), text...)
}

func (i Intent) toOutMessage() (*OutMessage, error) {
	to, err := address.ParseAny(i.To)
	if err != nil {
		return nil, err
	}

	amount, err := coins.ParseNano(i.Amount)
	if err != nil {
		return nil, err
	}

	if i.Comment != "" && len(i.Payload) > 0 {
		return nil, fmt.Errorf("%w: comment and payload cannot be used together", ErrInvalidPayload)
	}

	payload := append([]byte{}, i.Payload...)
	if i.Comment != "" {
		payload = CreateCommentPayload(i.Comment)
	}

	bounce := to.IsBounceable()
	if i.Bounce != nil {
		bounce = *i.Bounce
	}

	mode := uint8(PayGasSeparately + IgnoreErrors)
	if i.Mode != nil {
		mode = *i.Mode
	}

	return &OutMessage{
		Mode:    mode,
		To:      to.Bounce(bounce),
		Amount:  amount,
		Bounce:  bounce,
		Payload: payload,
	}, nil
}

type State int

const (
	StateUnbuilt State = iota
	StateBuilt
	StateSerialized
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSerialized:
		return "serialized"
	case StateSubmitted:
		return "submitted"
	}
	return "unbuilt"
}

// Message - signed external message, single use: built, serialized once and submitted once
type Message struct {
	mx    sync.Mutex
	state State

	env       *Envelope
	expiresAt time.Time
	data      []byte
}

func (m *Message) State() State {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.state
}

func (m *Message) Seqno() uint32 {
	return m.env.Body.Seqno
}

func (m *Message) ExpiresAt() time.Time {
	return m.expiresAt
}

func (m *Message) Wallet() *address.Address {
	return m.env.Wallet
}

func (m *Message) Envelope() *Envelope {
	return m.env
}

// Serialize - returns envelope bytes, repeated calls return the same bytes
func (m *Message) Serialize() ([]byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	switch m.state {
	case StateUnbuilt:
		return nil, fmt.Errorf("cannot serialize %s message", m.state)
	case StateBuilt:
		m.data = m.env.marshal()
		m.state = StateSerialized
	}
	return m.data, nil
}

// MarkSubmitted - moves message to final state, it should not be sent again after that
func (m *Message) MarkSubmitted() error {
	m.mx.Lock()
	defer m.mx.Unlock()

	switch m.state {
	case StateSerialized:
		m.state = StateSubmitted
		return nil
	case StateSubmitted:
		return ErrAlreadySubmitted
	}
	return ErrNotSerialized
}

// Builder - signs messages of one wallet
type Builder struct {
	key       ed25519.PrivateKey
	ver       Version
	subwallet uint32
	addr      *address.Address
	stateInit *StateInit
}

func NewBuilder(key ed25519.PrivateKey, ver Version, workchain int32, subWallet uint32) (*Builder, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key should be %d bytes", errInvalidKey, ed25519.PrivateKeySize)
	}

	pub := key.Public().(ed25519.PublicKey)
	stateInit, err := GetStateInit(pub, ver, subWallet)
	if err != nil {
		return nil, err
	}

	addr, err := DeriveAddress(pub, ver, workchain, subWallet)
	if err != nil {
		return nil, err
	}

	return &Builder{
		key:       key,
		ver:       ver,
		subwallet: subWallet,
		addr:      addr,
		stateInit: stateInit,
	}, nil
}

func (b *Builder) Address() *address.Address {
	return b.addr
}

// ExpiresIn - expiration time for message built now
func ExpiresIn(ttl time.Duration) time.Time {
	return timeNow().Add(ttl)
}

// Build - signs single transfer, see BuildMany
func (b *Builder) Build(intent Intent, seqno uint32, expiresAt time.Time) (*Message, error) {
	return b.BuildMany([]Intent{intent}, seqno, expiresAt)
}

// BuildMany - signs up to 4 transfers for the given seqno. Same inputs always give
// the same message, so unexpired message can be resent instead of building a new one.
// State init is attached for seqno 0, to deploy the wallet with the first message.
func (b *Builder) BuildMany(intents []Intent, seqno uint32, expiresAt time.Time) (*Message, error) {
	// ledger sees expiration with seconds precision
	expiresAt = time.Unix(expiresAt.Unix(), 0)
	if !expiresAt.After(timeNow()) {
		return nil, fmt.Errorf("%w: expires at %s", ErrExpired, expiresAt.UTC().Format(time.RFC3339))
	}
	if expiresAt.Unix() > math.MaxUint32 {
		return nil, fmt.Errorf("%w: expiration is too far", ErrExpired)
	}

	if len(intents) == 0 {
		return nil, fmt.Errorf("%w: at least one intent is required", ErrInvalidPayload)
	}
	if len(intents) > maxMessagesV3 {
		return nil, fmt.Errorf("%w: for this type of wallet max %d messages can be sent in the same time", ErrTooManyMessages, maxMessagesV3)
	}

	body := &Body{
		Subwallet:  b.subwallet,
		ValidUntil: uint32(expiresAt.Unix()),
		Seqno:      seqno,
	}

	for i, intent := range intents {
		msg, err := intent.toOutMessage()
		if err != nil {
			return nil, fmt.Errorf("intent %d: %w", i, err)
		}
		body.Messages = append(body.Messages, *msg)
	}

	bodyData := body.marshal()
	env := &Envelope{
		Wallet:    b.addr,
		Signature: ed25519.Sign(b.key, MessageHash(bodyData)),
		Body:      body,
		bodyData:  bodyData,
	}
	if seqno == 0 {
		env.StateInit = b.stateInit
	}

	return &Message{
		state:     StateBuilt,
		env:       env,
		expiresAt: time.Unix(int64(body.ValidUntil), 0),
	}, nil
}
