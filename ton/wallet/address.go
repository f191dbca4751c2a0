package wallet

import (
	"encoding/binary"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/xssnick/tonutils-transfer/address"
)

const DefaultSubwallet = 698983191

// StateInit - initial code and data of wallet contract, attached to the first message
// to deploy the wallet. Address of the wallet is the hash of it.
type StateInit struct {
	Version   Version
	PublicKey ed25519.PublicKey
	Subwallet uint32

	code cellRef
	data cellRef
}

func GetStateInit(pubKey ed25519.PublicKey, ver Version, subWallet uint32) (*StateInit, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key should be %d bytes", errInvalidKey, ed25519.PublicKeySize)
	}

	code, ok := walletCode[ver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, ver)
	}

	var data []byte
	switch ver {
	case V3R1, V3R2:
		data = make([]byte, 0, 40)
		data = binary.BigEndian.AppendUint32(data, 0) // seqno
		data = binary.BigEndian.AppendUint32(data, subWallet)
		data = append(data, pubKey...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, ver)
	}

	return &StateInit{
		Version:   ver,
		PublicKey: append(ed25519.PublicKey{}, pubKey...),
		Subwallet: subWallet,
		code:      code,
		data:      cellRef{hash: reprHash(len(data)*8, data), depth: 0},
	}, nil
}

// CodeHash - hash of wallet contract code
func (s *StateInit) CodeHash() []byte {
	return s.code.hash
}

// Hash - hash of StateInit cell, it is account id of the wallet
func (s *StateInit) Hash() []byte {
	// split_depth:(Maybe (## 5)) special:(Maybe TickTock) code:(Maybe ^Cell) data:(Maybe ^Cell) library:(Maybe ^Cell)
	// 0 0 1 1 0
	return reprHash(5, []byte{0b00110000}, s.code, s.data)
}

// AddressFromPubKey - wallet address in basechain
func AddressFromPubKey(key ed25519.PublicKey, ver Version, subWallet uint32) (*address.Address, error) {
	return DeriveAddress(key, ver, 0, subWallet)
}

// DeriveAddress - pure function of key, version, workchain and subwallet.
// Result is bounceable and not testnet only, use Bounce and Testnet to adjust flags.
func DeriveAddress(key ed25519.PublicKey, ver Version, workchain int32, subWallet uint32) (*address.Address, error) {
	if workchain < -128 || workchain > 127 {
		return nil, fmt.Errorf("%w: workchain %d out of range", address.ErrInvalidAddress, workchain)
	}

	state, err := GetStateInit(key, ver, subWallet)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return address.NewAddressStd(workchain, state.Hash()), nil
}
