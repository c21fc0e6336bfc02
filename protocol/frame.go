// Package protocol implements the Wire Protocol & Dispatch layer (spec
// §4.10): a length-prefixed, control-code-tagged TCP frame format and a
// per-connection state machine gating which control codes a handler will
// accept.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// ControlCode tags a frame's payload kind (spec §4.10).
type ControlCode uint64

const (
	// CodeDataEncKeys carries a client's encryption keys (C->S, data).
	CodeDataEncKeys ControlCode = 0x401
	// CodeDataParam carries encryption parameters (C->S, data); present in
	// the original protocol but not exercised by spec's distilled core —
	// kept for wire compatibility with a client that sends it.
	CodeDataParam ControlCode = 0x402
	// CodeDataQueryID tags a query-id response payload (S->C, data).
	CodeDataQueryID ControlCode = 0x403
	// CodeDataResult tags a result response payload (S->C, data).
	CodeDataResult ControlCode = 0x404
	// CodeUpDownloadQuery submits a query and receives a query-id (C<->S).
	CodeUpDownloadQuery ControlCode = 0x1001
	// CodeUpDownloadResult polls a result by query-id (C<->S).
	CodeUpDownloadResult ControlCode = 0x1002
)

func (c ControlCode) String() string {
	switch c {
	case CodeDataEncKeys:
		return "DataEncKeys"
	case CodeDataParam:
		return "DataParam"
	case CodeDataQueryID:
		return "DataQueryID"
	case CodeDataResult:
		return "DataResult"
	case CodeUpDownloadQuery:
		return "UpDownloadQuery"
	case CodeUpDownloadResult:
		return "UpDownloadResult"
	default:
		return fmt.Sprintf("ControlCode(0x%x)", uint64(c))
	}
}

// maxFrameLen bounds a single frame's payload so a malformed or malicious
// length field cannot force an unbounded allocation.
const maxFrameLen = 256 << 20

// Frame is one header-prefixed message: an 8-byte little-endian control
// code, an 8-byte little-endian payload length, then the payload.
type Frame struct {
	Code    ControlCode
	Payload []byte
}

// WriteFrame writes f's header and payload to w.
func WriteFrame(w io.Writer, f Frame) error {
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(f.Code))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(f.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("protocol: write header: %w", err)
	}
	if len(f.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(f.Payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, fmt.Errorf("protocol: read header: %w", err)
	}
	code := ControlCode(binary.LittleEndian.Uint64(hdr[0:8]))
	length := binary.LittleEndian.Uint64(hdr[8:16])
	if length > maxFrameLen {
		return Frame{}, fmt.Errorf("protocol: frame length %d exceeds limit: %w", length, ppcnnerr.ErrProtocol)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("protocol: read payload: %w", err)
		}
	}
	return Frame{Code: code, Payload: payload}, nil
}
