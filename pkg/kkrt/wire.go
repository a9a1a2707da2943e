package kkrt

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/optable/kkrt/internal/util"
)

// Every message is a frame: a one byte tag, the payload length as a
// little endian uint32, then the payload.
const headerLen = 5

type frameTag uint8

const (
	frameParams frameTag = iota + 1
	frameCommit
	frameSeed
	frameOpen
	frameCorrection
)

func (t frameTag) String() string {
	switch t {
	case frameParams:
		return "params"
	case frameCommit:
		return "commit"
	case frameSeed:
		return "seed"
	case frameOpen:
		return "open"
	case frameCorrection:
		return "correction"
	default:
		return fmt.Sprintf("frame(%d)", uint8(t))
	}
}

// maxParamsLen bounds the size of a params frame.
const maxParamsLen = 1 << 10

// correctionHeaderLen is the start and count prefix of a correction
// payload.
const correctionHeaderLen = 16

func writeFrame(w io.Writer, tag frameTag, payload []byte) error {
	buf := make([]byte, headerLen+len(payload))
	buf[0] = byte(tag)
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(payload)))
	copy(buf[headerLen:], payload)

	_, err := w.Write(buf)
	return wireErr(err)
}

// readFrame reads one frame of the given tag. A positive want is the
// exact payload length expected, a negative want bounds it by -want.
func readFrame(ctx context.Context, r io.Reader, tag frameTag, want int) ([]byte, error) {
	var payload []byte
	err := util.Sel(ctx, func() error {
		var header [headerLen]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return err
		}

		got := frameTag(header[0])
		if got != tag {
			return fmt.Errorf("%w: expected %v frame, got %v", ErrProtocolDesync, tag, got)
		}

		n := int(binary.LittleEndian.Uint32(header[1:]))
		if (want >= 0 && n != want) || (want < 0 && n > -want) {
			return fmt.Errorf("%w: %v frame of %d bytes", ErrProtocolDesync, tag, n)
		}

		payload = make([]byte, n)
		_, err := io.ReadFull(r, payload)
		return err
	})
	if err != nil {
		return nil, wireErr(err)
	}

	return payload, nil
}

// params is exchanged at the start of every Init so that both roles
// agree on everything the correlation expansion depends on.
type params struct {
	Role         string   `cbor:"1,keyasint"`
	BaseCount    uint64   `cbor:"2,keyasint"`
	StatSecParam uint64   `cbor:"3,keyasint"`
	NumOTs       uint64   `cbor:"4,keyasint"`
	PRG          string   `cbor:"5,keyasint"`
	Epoch        uint64   `cbor:"6,keyasint"`
	Lineage      []uint32 `cbor:"7,keyasint,omitempty"`
}

var paramsEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// agrees reports whether p and peer describe the two ends of the same
// session.
func (p params) agrees(peer params) bool {
	if p.Role == peer.Role ||
		p.BaseCount != peer.BaseCount ||
		p.StatSecParam != peer.StatSecParam ||
		p.NumOTs != peer.NumOTs ||
		p.PRG != peer.PRG ||
		p.Epoch != peer.Epoch ||
		len(p.Lineage) != len(peer.Lineage) {
		return false
	}

	for i := range p.Lineage {
		if p.Lineage[i] != peer.Lineage[i] {
			return false
		}
	}
	return true
}

// exchangeParams sends local and checks it against the peer's params.
func exchangeParams(ctx context.Context, rw io.ReadWriter, local params) error {
	b, err := paramsEncMode.Marshal(local)
	if err != nil {
		return err
	}
	if err := writeFrame(rw, frameParams, b); err != nil {
		return err
	}

	b, err = readFrame(ctx, rw, frameParams, -maxParamsLen)
	if err != nil {
		return err
	}

	var peer params
	if err := cbor.Unmarshal(b, &peer); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolDesync, err)
	}
	if !local.agrees(peer) {
		return fmt.Errorf("%w: local %+v, peer %+v", ErrProtocolDesync, local, peer)
	}
	return nil
}

// correctionPayload lays out rows [start, start+count) of rows.
func correctionPayload(start, count uint64, rows [][]byte, rowBytes int) []byte {
	payload := make([]byte, correctionHeaderLen+int(count)*rowBytes)
	binary.LittleEndian.PutUint64(payload, start)
	binary.LittleEndian.PutUint64(payload[8:], count)

	off := correctionHeaderLen
	for i := start; i < start+count; i++ {
		off += copy(payload[off:], rows[i])
	}
	return payload
}

// parseCorrection splits a correction payload into its header and the
// concatenated rows.
func parseCorrection(payload []byte) (start, count uint64, rows []byte) {
	return binary.LittleEndian.Uint64(payload),
		binary.LittleEndian.Uint64(payload[8:]),
		payload[correctionHeaderLen:]
}
