package wallet

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/coins"
	"github.com/xssnick/tonutils-transfer/ton"
)

type MockAPI struct {
	getAccount          func(ctx context.Context, addr *address.Address) (*ton.Account, error)
	sendExternalMessage func(ctx context.Context, data []byte) ([]byte, error)

	extMsgSent []byte
	sentTimes  int
}

func (m *MockAPI) GetAccount(ctx context.Context, addr *address.Address) (*ton.Account, error) {
	return m.getAccount(ctx, addr)
}

func (m *MockAPI) SendExternalMessage(ctx context.Context, data []byte) ([]byte, error) {
	m.extMsgSent = data
	m.sentTimes++
	return m.sendExternalMessage(ctx, data)
}

// cases
const (
	OK = iota
	AccountErr
	AccountNotFound
	AccountInactive
	SendErr
	SendRejected
	SendTimeout
	BadAmount
	BadDestination
	TooMuchMessages
	CommentAndPayload
)

const testDestination = "0QAfX8cOX7tBdjHysYkhQqov1a_W8aiF765EICGQkcl1fKpR"

var testNow = time.Unix(1000000, 0)

func testKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed([]byte("12345678901234567890123456789012"))
}

func TestWallet_Transfer(t *testing.T) {
	timeNow = func() time.Time {
		return testNow
	}
	defer func() { timeNow = time.Now }()

	pkey := testKey()
	errTest := errors.New("test")

	tests := []struct {
		flow      int
		name      string
		stage     Stage
		kind      Kind
		withInit  bool
		wantSent  bool
		wantConf  bool
		wantError error
	}{
		{flow: OK, name: "ok", wantSent: true, wantConf: true},
		{flow: AccountNotFound, name: "not deployed", withInit: true, wantSent: true, wantConf: true},
		{flow: AccountInactive, name: "inactive", withInit: true, wantSent: true, wantConf: true},
		{flow: AccountErr, name: "account err", stage: StageSeqno, kind: KindStateUnavailable, wantError: ton.ErrStateUnavailable},
		{flow: SendErr, name: "send err", stage: StageSubmit, kind: KindUnknown, wantSent: true, wantError: errTest},
		{flow: SendRejected, name: "rejected", stage: StageSubmit, kind: KindRejected, wantSent: true, wantError: ton.ErrRejected},
		{flow: SendTimeout, name: "timeout", stage: StageSubmit, kind: KindTransient, wantSent: true, wantConf: true, wantError: ton.ErrTimeout},
		{flow: BadAmount, name: "bad amount", stage: StageBuild, kind: KindInvalidInput, wantError: ErrInvalidAmount},
		{flow: BadDestination, name: "bad destination", stage: StageBuild, kind: KindInvalidInput, wantError: ErrInvalidAddress},
		{flow: TooMuchMessages, name: "too much messages", stage: StageBuild, kind: KindInvalidInput, wantError: ErrTooManyMessages},
		{flow: CommentAndPayload, name: "comment and payload", stage: StageBuild, kind: KindInvalidInput, wantError: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockAPI{}
			w, err := FromPrivateKey(m, pkey, V3)
			if err != nil {
				t.Fatal(err)
			}

			m.getAccount = func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
				if !addr.Equals(w.Address()) {
					t.Fatal("not wallet addr")
				}

				switch tt.flow {
				case AccountErr:
					return nil, errTest
				case AccountNotFound:
					return nil, ton.ErrAccountNotFound
				case AccountInactive:
					return &ton.Account{Address: addr, Balance: big.NewInt(1e9)}, nil
				}
				return &ton.Account{Address: addr, Seqno: 3, Balance: big.NewInt(1e9), IsActive: true}, nil
			}

			m.sendExternalMessage = func(ctx context.Context, data []byte) ([]byte, error) {
				env, err := DecodeEnvelope(data)
				if err != nil {
					t.Fatal(err)
				}

				if !env.Wallet.Equals(w.Address()) {
					t.Fatal("not wallet addr")
				}
				if !env.Verify(pkey.Public().(ed25519.PublicKey)) {
					t.Fatal("bad signature")
				}
				if env.Body.ValidUntil != uint32(testNow.Add(DefaultMessageTTL).Unix()) {
					t.Fatal("bad expiration")
				}
				if env.Body.Subwallet != DefaultSubwallet {
					t.Fatal("bad subwallet")
				}

				if tt.withInit {
					if env.StateInit == nil || env.Body.Seqno != 0 {
						t.Fatal("state init should be attached to the first message")
					}
					if !bytes.Equal(env.StateInit.Hash(), w.Address().Data()) {
						t.Fatal("state init is not of this wallet")
					}
				} else if env.StateInit != nil || env.Body.Seqno != 3 {
					t.Fatal("state init should not be attached")
				}

				if len(env.Body.Messages) != 1 {
					t.Fatal("should be one message")
				}
				msg := env.Body.Messages[0]
				if !msg.To.Equals(address.MustParseAddr(testDestination)) || msg.Bounce || msg.To.IsBounceable() {
					t.Fatal("bad destination", msg.To.String())
				}
				if msg.Amount.Nano().Uint64() != 10000000 || msg.Mode != PayGasSeparately+IgnoreErrors {
					t.Fatal("bad message")
				}
				if !bytes.Equal(msg.Payload, CreateCommentPayload("hello")) {
					t.Fatal("bad comment")
				}

				switch tt.flow {
				case SendErr:
					return nil, errTest
				case SendRejected:
					return nil, ton.Reject(ton.RejectInsufficientFunds, "balance is too low")
				case SendTimeout:
					return nil, ton.ErrTimeout
				}
				return MessageHash(data), nil
			}

			intent := Intent{To: testDestination, Amount: "10000000", Comment: "hello"}
			var intents []Intent
			switch tt.flow {
			case BadAmount:
				intent.Amount = "-1"
			case BadDestination:
				intent.To = "EQ_bad"
			case CommentAndPayload:
				intent.Payload = []byte{1}
			case TooMuchMessages:
				intents = []Intent{intent, intent, intent, intent}
			}
			intents = append(intents, intent)

			conf, err := w.Transfer(context.Background(), intents...)
			if tt.wantError == nil {
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(conf.Hash, MessageHash(m.extMsgSent)) {
					t.Fatal("bad hash")
				}
			} else {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("want %v, got %v", tt.wantError, err)
				}

				var sErr *StageError
				if !errors.As(err, &sErr) {
					t.Fatal("should be stage error", err)
				}
				if sErr.Stage != tt.stage || sErr.Kind() != tt.kind {
					t.Fatalf("want %s/%s, got %s/%s", tt.stage, tt.kind, sErr.Stage, sErr.Kind())
				}
			}

			if (m.sentTimes > 0) != tt.wantSent || m.sentTimes > 1 {
				t.Fatal("unexpected sends count", m.sentTimes)
			}
			if (conf != nil) != tt.wantConf {
				t.Fatal("unexpected confirmation", conf)
			}
			if conf != nil && (conf.AttemptID == "" || !conf.ExpiresAt.Equal(testNow.Add(DefaultMessageTTL))) {
				t.Fatal("bad confirmation", conf)
			}
		})
	}
}

func TestWallet_PendingSeqno(t *testing.T) {
	now := testNow
	timeNow = func() time.Time {
		return now
	}
	defer func() { timeNow = time.Now }()

	seqno := uint32(5)
	m := &MockAPI{
		getAccount: func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
			return &ton.Account{Address: addr, Seqno: seqno, IsActive: true}, nil
		},
		sendExternalMessage: func(ctx context.Context, data []byte) ([]byte, error) {
			return nil, ton.ErrTimeout
		},
	}

	w, err := FromPrivateKey(m, testKey(), V3R2, WithMessageTTL(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	intent := Intent{To: testDestination, Amount: "1"}

	conf, err := w.Transfer(context.Background(), intent)
	if !errors.Is(err, ton.ErrTimeout) || conf == nil {
		t.Fatal("should return confirmation with timeout", err)
	}

	// seqno not moved, new message would compete with unknown one
	if _, err = w.Transfer(context.Background(), intent); !errors.Is(err, ErrPendingMessage) {
		t.Fatal("should refuse to rebuild pending seqno", err)
	}
	if m.sentTimes != 1 {
		t.Fatal("should not send")
	}

	status, err := w.Confirm(context.Background(), conf)
	if err != nil || status != StatusPending {
		t.Fatal("should be pending", status, err)
	}

	now = now.Add(31 * time.Second)
	status, err = w.Confirm(context.Background(), conf)
	if err != nil || status != StatusExpired {
		t.Fatal("should be expired", status, err)
	}

	if _, err = w.Transfer(context.Background(), intent); !errors.Is(err, ton.ErrTimeout) {
		t.Fatal("after expiration new message should be sent", err)
	}

	seqno++
	status, err = w.Confirm(context.Background(), conf)
	if err != nil || status != StatusApplied {
		t.Fatal("should be applied", status, err)
	}
}

func TestWallet_CallerGaveUp(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func() (context.Context, context.CancelFunc)
		wantCx error
	}{
		{
			name: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			wantCx: context.DeadlineExceeded,
		},
		{
			name: "canceled",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(50*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantCx: context.Canceled,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := &MockAPI{
				getAccount: func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
					return &ton.Account{Address: addr, Seqno: 3, IsActive: true}, nil
				},
				sendExternalMessage: func(ctx context.Context, data []byte) ([]byte, error) {
					// delivered, but response never comes
					<-ctx.Done()
					return nil, ctx.Err()
				},
			}

			cfg := ton.DefaultConfig()
			cfg.PoolSize = 1
			client, err := ton.NewClient(context.Background(), cfg, func(ctx context.Context, cfg ton.Config, idx int) (ton.API, error) {
				return m, nil
			})
			if err != nil {
				t.Fatal(err)
			}

			w, err := FromPrivateKey(client, testKey(), V3R2)
			if err != nil {
				t.Fatal(err)
			}
			intent := Intent{To: testDestination, Amount: "1"}

			ctx, cancel := test.ctx()
			defer cancel()

			conf, err := w.Transfer(ctx, intent)
			if conf == nil || conf.Seqno != 3 {
				t.Fatal("should return confirmation handle", err)
			}
			if !errors.Is(err, ton.ErrTimeout) || !errors.Is(err, test.wantCx) {
				t.Fatal("should be timeout", err)
			}
			if Classify(err) != KindTransient {
				t.Fatal("outcome should be unknown, got", Classify(err))
			}

			if _, err = w.Transfer(context.Background(), intent); !errors.Is(err, ErrPendingMessage) {
				t.Fatal("should refuse to pay again for pending seqno", err)
			}
			if m.sentTimes != 1 {
				t.Fatal("should send once, sent", m.sentTimes)
			}
		})
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	timeNow = func() time.Time {
		return testNow
	}
	defer func() { timeNow = time.Now }()

	b, err := NewBuilder(testKey(), V3R2, 0, DefaultSubwallet)
	if err != nil {
		t.Fatal(err)
	}

	intent := Intent{To: testDestination, Amount: "10000000"}
	exp := testNow.Add(time.Minute)

	m1, err := b.Build(intent, 7, exp)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := b.Build(intent, 7, exp.Add(300*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	d1, err := m1.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := m2.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d1, d2) {
		t.Fatal("same inputs should give the same message")
	}

	m3, err := b.Build(intent, 8, exp)
	if err != nil {
		t.Fatal(err)
	}
	d3, _ := m3.Serialize()
	if bytes.Equal(d1, d3) {
		t.Fatal("seqno should change message")
	}

	if m1.Seqno() != 7 || !m1.ExpiresAt().Equal(exp) || !m1.Wallet().Equals(b.Address()) {
		t.Fatal("bad message params")
	}
}

func TestBuilder_Errors(t *testing.T) {
	timeNow = func() time.Time {
		return testNow
	}
	defer func() { timeNow = time.Now }()

	b, err := NewBuilder(testKey(), V3R2, 0, DefaultSubwallet)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		intent Intent
		exp    time.Time
		want   error
	}{
		{"past expiry", Intent{To: testDestination, Amount: "1"}, testNow.Add(-time.Second), ErrExpired},
		{"expiry now", Intent{To: testDestination, Amount: "1"}, testNow.Add(500 * time.Millisecond), ErrExpired},
		{"negative amount", Intent{To: testDestination, Amount: "-10"}, testNow.Add(time.Minute), ErrInvalidAmount},
		{"not numeric amount", Intent{To: testDestination, Amount: "1.5"}, testNow.Add(time.Minute), ErrInvalidAmount},
		{"empty amount", Intent{To: testDestination}, testNow.Add(time.Minute), ErrInvalidAmount},
		{"too big amount", Intent{To: testDestination, Amount: "1" + string(bytes.Repeat([]byte("0"), 40))}, testNow.Add(time.Minute), ErrInvalidAmount},
		{"bad checksum", Intent{To: "0QAfX8cOX7tBdjHysYkhQqov1a_W8aiF765EICGQkcl1fKpA", Amount: "1"}, testNow.Add(time.Minute), ErrInvalidAddress},
		{"empty address", Intent{Amount: "1"}, testNow.Add(time.Minute), ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := b.Build(tt.intent, 1, tt.exp)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if msg != nil {
				t.Fatal("message should not be built")
			}
			if Classify(err) != KindInvalidInput {
				t.Fatal("should be invalid input")
			}
		})
	}

	if _, err = b.BuildMany(nil, 1, testNow.Add(time.Minute)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatal("empty intents should fail", err)
	}
	if _, err = NewBuilder(testKey()[:10], V3R2, 0, DefaultSubwallet); !errors.Is(err, ton.ErrInvalidInput) {
		t.Fatal("short key should fail", err)
	}
	if _, err = NewBuilder(testKey(), V4R2, 0, DefaultSubwallet); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatal("v4 should fail", err)
	}
}

func TestIntent_Bounce(t *testing.T) {
	bounceable := address.MustParseAddr(testDestination).Bounce(true).String()

	tests := []struct {
		to     string
		bounce *bool
		want   bool
	}{
		{testDestination, nil, false},
		{bounceable, nil, true},
		{bounceable, BounceFlag(false), false},
		{testDestination, BounceFlag(true), true},
		{"0:1f5fc70e5fbb417631f2b18921422a2f5afd6f1a885efae4442090918e4975b7", nil, true},
	}

	for _, tt := range tests {
		msg, err := Intent{To: tt.to, Amount: "5", Bounce: tt.bounce}.toOutMessage()
		if err != nil {
			t.Fatal(err)
		}
		if msg.Bounce != tt.want || msg.To.IsBounceable() != tt.want {
			t.Fatalf("%s: want bounce %v", tt.to, tt.want)
		}
	}
}

func TestIntent_Mode(t *testing.T) {
	tests := []struct {
		mode *uint8
		want uint8
	}{
		{nil, PayGasSeparately + IgnoreErrors},
		{SendMode(0), 0},
		{SendMode(CarryAllRemainingBalance), CarryAllRemainingBalance},
	}

	for _, tt := range tests {
		msg, err := Intent{To: testDestination, Amount: "5", Mode: tt.mode}.toOutMessage()
		if err != nil {
			t.Fatal(err)
		}
		if msg.Mode != tt.want {
			t.Fatalf("want mode %d, got %d", tt.want, msg.Mode)
		}
	}
}

func TestMessage_States(t *testing.T) {
	timeNow = func() time.Time {
		return testNow
	}
	defer func() { timeNow = time.Now }()

	b, err := NewBuilder(testKey(), V3R2, 0, DefaultSubwallet)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := b.Build(Intent{To: testDestination, Amount: "1"}, 0, ExpiresIn(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if msg.State() != StateBuilt {
		t.Fatal("should be built")
	}

	if err = msg.MarkSubmitted(); !errors.Is(err, ErrNotSerialized) {
		t.Fatal("not serialized message cannot be submitted", err)
	}

	d1, err := msg.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := msg.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d1, d2) || msg.State() != StateSerialized {
		t.Fatal("serialize should be idempotent")
	}

	if err = msg.MarkSubmitted(); err != nil {
		t.Fatal(err)
	}
	if err = msg.MarkSubmitted(); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatal("should be submitted once", err)
	}
	if msg.State() != StateSubmitted {
		t.Fatal("should be submitted")
	}

	d3, err := msg.Serialize()
	if err != nil || !bytes.Equal(d1, d3) || msg.State() != StateSubmitted {
		t.Fatal("state should not go back")
	}

	if _, err = (&Message{}).Serialize(); err == nil {
		t.Fatal("unbuilt message should not be serialized")
	}

	w, err := FromPrivateKey(&MockAPI{}, testKey(), V3R2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = w.Send(context.Background(), msg); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatal("submitted message should not be sent", err)
	}
}

func TestEnvelope_Decode(t *testing.T) {
	timeNow = func() time.Time {
		return testNow
	}
	defer func() { timeNow = time.Now }()

	key := testKey()
	b, err := NewBuilder(key, V3R2, 0, 77)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := b.BuildMany([]Intent{
		{To: testDestination, Amount: "10000000", Payload: []byte{0xDE, 0xAD}, Mode: SendMode(PayGasSeparately)},
		{To: "-1:" + "00000000000000000000000000000000000000000000000000000000000000ff", Amount: "0", Bounce: BounceFlag(false)},
	}, 0, ExpiresIn(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := msg.Serialize()

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}

	if !env.Verify(key.Public().(ed25519.PublicKey)) {
		t.Fatal("signature should be valid")
	}
	other := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32))
	if env.Verify(other.Public().(ed25519.PublicKey)) {
		t.Fatal("signature should not match other key")
	}

	if env.StateInit == nil || env.StateInit.Subwallet != 77 || !bytes.Equal(env.StateInit.Hash(), b.Address().Data()) {
		t.Fatal("bad state init")
	}
	if env.Body.Subwallet != 77 || env.Body.Seqno != 0 || len(env.Body.Messages) != 2 {
		t.Fatal("bad body")
	}
	if !bytes.Equal(env.Body.Hash(), MessageHash(env.bodyData)) {
		t.Fatal("body hash mismatch")
	}

	m2 := env.Body.Messages[1]
	if m2.To.Workchain() != -1 || !m2.Amount.IsZero() || m2.Bounce || m2.Mode != PayGasSeparately+IgnoreErrors {
		t.Fatal("bad second message")
	}
	if !bytes.Equal(env.Body.Messages[0].Payload, []byte{0xDE, 0xAD}) || env.Body.Messages[0].Mode != PayGasSeparately {
		t.Fatal("bad first message")
	}

	if !bytes.Equal(env.marshal(), data) {
		t.Fatal("decoded envelope should encode the same")
	}

	for _, bad := range [][]byte{nil, {0xFF}, data[:len(data)/2]} {
		if _, err = DecodeEnvelope(bad); !errors.Is(err, ErrInvalidEnvelope) {
			t.Fatal("should be invalid", err)
		}
	}
}

func TestSeqnoTracker_Fetch(t *testing.T) {
	errTest := errors.New("test")
	tests := []struct {
		name  string
		acc   *ton.Account
		err   error
		seqno uint32
		want  error
	}{
		{"active", &ton.Account{Seqno: 9, IsActive: true}, nil, 9, nil},
		{"inactive", &ton.Account{Seqno: 9}, nil, 0, nil},
		{"not found", nil, ton.ErrAccountNotFound, 0, nil},
		{"failure", nil, errTest, 0, ton.ErrStateUnavailable},
		{"network", nil, ton.ErrNetworkUnavailable, 0, ton.ErrNetworkUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			tr := NewSeqnoTracker(&MockAPI{getAccount: func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
				calls++
				return tt.acc, tt.err
			}})

			seqno, err := tr.Fetch(context.Background(), address.MustParseAddr(testDestination))
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if err != nil && !errors.Is(err, ton.ErrStateUnavailable) {
				t.Fatal("should be state unavailable", err)
			}
			if seqno != tt.seqno || calls != 1 {
				t.Fatal("bad seqno", seqno)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrExpired, KindInvalidInput},
		{coins.ErrInvalidAmount, KindInvalidInput},
		{address.ErrInvalidAddress, KindInvalidInput},
		{ErrAlreadySubmitted, KindInvalidInput},
		{ton.ErrStateUnavailable, KindStateUnavailable},
		{ton.Reject(ton.RejectSeqnoMismatch, ""), KindRejected},
		{ton.Reject(ton.RejectExpired, "too late"), KindRejected},
		{ton.ErrTimeout, KindTransient},
		{ton.ErrNetworkUnavailable, KindTransient},
		{ErrPendingMessage, KindTransient},
		{errors.New("test"), KindUnknown},
		{nil, KindUnknown},
	}

	for _, tt := range tests {
		if k := Classify(stageErr(StageSubmit, tt.err)); k != tt.kind {
			t.Fatalf("%v: want %s, got %s", tt.err, tt.kind, k)
		}
	}

	if stageErr(StageBuild, nil) != nil {
		t.Fatal("nil should stay nil")
	}

	err := stageErr(StageSubmit, ton.Reject(ton.RejectSeqnoMismatch, "seqno 3, expected 4"))
	if !errors.Is(err, &ton.RejectedError{Reason: ton.RejectSeqnoMismatch}) {
		t.Fatal("reason should be matched")
	}
	if errors.Is(err, &ton.RejectedError{Reason: ton.RejectExpired}) {
		t.Fatal("other reason should not be matched")
	}
	if err.Error() != "submit stage failed: rejected by ledger: seqno mismatch: seqno 3, expected 4" {
		t.Fatal("bad message", err.Error())
	}
}

func TestWallet_Options(t *testing.T) {
	m := &MockAPI{getAccount: func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
		return &ton.Account{Address: addr, Balance: big.NewInt(1500000000), IsActive: true}, nil
	}}

	w, err := FromPrivateKey(m, testKey(), V3R2, WithNetwork(ton.Testnet), WithWorkchain(-1))
	if err != nil {
		t.Fatal(err)
	}
	if !w.Address().IsTestnetOnly() || !w.Address().IsBounceable() || w.Address().Workchain() != -1 {
		t.Fatal("bad address flags")
	}
	if w.WalletAddress().IsBounceable() {
		t.Fatal("wallet address should be non bounceable")
	}

	sub, err := w.GetSubwallet(1)
	if err != nil {
		t.Fatal(err)
	}
	if sub.GetSubwalletID() != 1 || sub.Address().Equals(w.Address()) || !sub.Address().IsTestnetOnly() {
		t.Fatal("bad subwallet")
	}

	bal, err := w.GetBalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if bal.String() != "1.5" {
		t.Fatal("bad balance", bal.String())
	}

	if _, err = FromPrivateKey(m, testKey(), V3R2, WithMessageTTL(0)); !errors.Is(err, ton.ErrInvalidInput) {
		t.Fatal("zero ttl should fail", err)
	}

	_, err = FromPrivateKey(m, testKey(), V4R2)
	var sErr *StageError
	if !errors.As(err, &sErr) || sErr.Stage != StageDerive || !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatal("should fail on derive stage", err)
	}
}

func TestWallet_SubwalletLogger(t *testing.T) {
	m := &MockAPI{getAccount: func(ctx context.Context, addr *address.Address) (*ton.Account, error) {
		return &ton.Account{Address: addr, IsActive: true}, nil
	}}

	var buf bytes.Buffer
	w, err := FromPrivateKey(m, testKey(), V3R2, WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatal(err)
	}

	sub, err := w.GetSubwallet(7)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = sub.Transfer(context.Background(), Intent{To: testDestination, Amount: "-1"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatal("should fail on amount", err)
	}

	out := buf.String()
	if !strings.Contains(out, "transfer not built") || !strings.Contains(out, sub.Address().String()) {
		t.Fatal("subwallet failure should be logged", out)
	}
	if strings.Contains(out, w.Address().String()) {
		t.Fatal("parent wallet fields should not be inherited", out)
	}
}

func TestWaitConfirmation(t *testing.T) {
	conf := &Confirmation{
		Wallet:    address.MustParseAddr(testDestination),
		Seqno:     2,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	calls := 0
	fetcher := SeqnoFetcherFunc(func(ctx context.Context, addr *address.Address) (uint32, error) {
		calls++
		switch calls {
		case 1:
			return 2, nil
		case 2:
			return 0, ton.ErrStateUnavailable
		}
		return 3, nil
	})

	status, err := WaitConfirmation(context.Background(), fetcher, conf, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusApplied || calls != 3 {
		t.Fatal("should be applied after 3 checks", status, calls)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err = WaitConfirmation(ctx, SeqnoFetcherFunc(func(ctx context.Context, addr *address.Address) (uint32, error) {
		return 2, nil
	}), conf, 5*time.Millisecond)
	if !errors.Is(err, ErrNotConfirmed) || status != StatusPending {
		t.Fatal("should not be confirmed", status, err)
	}

	expired := &Confirmation{Wallet: conf.Wallet, Seqno: 2, ExpiresAt: time.Now().Add(-time.Second)}
	status, err = WaitConfirmation(context.Background(), SeqnoFetcherFunc(func(ctx context.Context, addr *address.Address) (uint32, error) {
		return 2, nil
	}), expired, time.Millisecond)
	if err != nil || status != StatusExpired {
		t.Fatal("should be expired", status, err)
	}
}
