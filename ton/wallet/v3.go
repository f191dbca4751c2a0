package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
)

// https://github.com/toncenter/tonweb/blob/master/src/contract/wallet/WalletSources.md#v3-wallet
const _V3R1CodeHex = "B5EE9C724101010100620000C0FF0020DD2082014C97BA9730ED44D0D70B1FE0A4F2608308D71820D31FD31FD31FF82313BBF263ED44D0D31FD31FD3FFD15132BAF2A15144BAF2A204F901541055F910F2A3F8009320D74A96D307D402FB00E8D101A4C8CB1FCB1FCBFFC9ED543FBE6EE0"

// https://github.com/toncenter/tonweb/blob/master/src/contract/wallet/WalletSources.md#revision-2-2
const _V3R2CodeHex = "B5EE9C724101010100710000DEFF0020DD2082014C97BA218201339CBAB19F71B0ED44D0D31FD31F31D70BFFE304E0A4F2608308D71820D31FD31FD31FF82313BBF263ED44D0D31FD31FD3FFD15132BAF2A15144BAF2A204F901541055F910F2A3F8009320D74A96D307D402FB00E8D101A4C8CB1FCB1FCBFFC9ED5410BD6DAD"

var bocMagic = []byte{0xb5, 0xee, 0x9c, 0x72}

// cellRef - what parent cell needs to know about its child to compute own hash
type cellRef struct {
	hash  []byte
	depth uint16
}

// reprHash - representation hash of ordinary level 0 cell
func reprHash(bitsSz int, data []byte, refs ...cellRef) []byte {
	ceilBytes := (bitsSz + 7) / 8

	buf := make([]byte, 0, 2+ceilBytes+len(refs)*(2+32))
	buf = append(buf, byte(len(refs)), byte(ceilBytes+bitsSz/8))

	payload := make([]byte, ceilBytes)
	copy(payload, data)
	if unusedBits := 8 - (bitsSz % 8); unusedBits != 8 {
		// completion tag after last meaningful bit
		payload[ceilBytes-1] &= 0xFF << unusedBits
		payload[ceilBytes-1] |= 1 << (unusedBits - 1)
	}
	buf = append(buf, payload...)

	for _, ref := range refs {
		buf = binary.BigEndian.AppendUint16(buf, ref.depth)
	}
	for _, ref := range refs {
		buf = append(buf, ref.hash...)
	}

	h := sha256.Sum256(buf)
	return h[:]
}

// parseCodeBOC - loads contract code stored as bag of cells with single ordinary cell,
// serialized form of such cell is equal to its hash representation
func parseCodeBOC(boc []byte) (cellRef, error) {
	if len(boc) < 6 || !bytes.Equal(boc[:4], bocMagic) {
		return cellRef{}, errors.New("invalid boc magic")
	}

	flags := boc[4]
	hasIdx := flags&0x80 != 0
	hasCrc := flags&0x40 != 0
	sz := int(flags & 0x07)
	offBytes := int(boc[5])
	if sz == 0 || sz > 4 || offBytes == 0 || offBytes > 8 {
		return cellRef{}, errors.New("invalid boc header sizes")
	}

	if hasCrc {
		if len(boc) < 4 {
			return cellRef{}, errors.New("boc too short for crc")
		}
		body, sum := boc[:len(boc)-4], boc[len(boc)-4:]
		if crc32.Checksum(body, crc32.MakeTable(crc32.Castagnoli)) != binary.LittleEndian.Uint32(sum) {
			return cellRef{}, errors.New("boc crc mismatch")
		}
		boc = body
	}

	rd := boc[6:]
	readInt := func(n int) (uint64, error) {
		if len(rd) < n {
			return 0, errors.New("unexpected end of boc")
		}
		var v uint64
		for _, b := range rd[:n] {
			v = v<<8 | uint64(b)
		}
		rd = rd[n:]
		return v, nil
	}

	cells, err := readInt(sz)
	if err != nil {
		return cellRef{}, err
	}
	roots, err := readInt(sz)
	if err != nil {
		return cellRef{}, err
	}
	if cells != 1 || roots != 1 {
		return cellRef{}, fmt.Errorf("only single cell code is supported, got %d cells and %d roots", cells, roots)
	}
	if _, err = readInt(sz); err != nil { // absent
		return cellRef{}, err
	}
	totalSz, err := readInt(offBytes)
	if err != nil {
		return cellRef{}, err
	}
	if _, err = readInt(sz); err != nil { // root index
		return cellRef{}, err
	}
	if hasIdx {
		if _, err = readInt(offBytes); err != nil {
			return cellRef{}, err
		}
	}

	if uint64(len(rd)) != totalSz || totalSz < 2 {
		return cellRef{}, errors.New("invalid cells data size")
	}

	d1, d2 := rd[0], rd[1]
	if d1 != 0 {
		return cellRef{}, errors.New("code cell should be ordinary without refs")
	}
	if 2+(int(d2)+1)/2 != len(rd) {
		return cellRef{}, errors.New("code cell size mismatch")
	}

	h := sha256.Sum256(rd)
	return cellRef{hash: h[:], depth: 0}, nil
}

func mustParseCode(codeHex string) cellRef {
	boc, err := hex.DecodeString(codeHex)
	if err != nil {
		panic(err)
	}
	ref, err := parseCodeBOC(boc)
	if err != nil {
		panic(err)
	}
	return ref
}
