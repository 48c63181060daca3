// Package rpc implements the console wire protocol.
//
// Messages are XDR-encoded and carried in record-marked frames: each
// fragment starts with a 4-byte big-endian word whose top bit flags the last
// fragment and whose low 31 bits give the fragment length. A message is a
// Header followed by the procedure's argument, result or fault body.
package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ReadMessage reads fragments from r until the last one and returns the
// reassembled message.
func ReadMessage(r io.Reader) ([]byte, error) {
	var message []byte
	for {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}

		word := binary.BigEndian.Uint32(buf[:])
		length := word &^ lastFragment
		if uint64(len(message))+uint64(length) > MaxMessageSize {
			return nil, fmt.Errorf("message too large: %d bytes", uint64(len(message))+uint64(length))
		}

		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		message = append(message, fragment...)

		if word&lastFragment != 0 {
			return message, nil
		}
	}
}

// Frame prefixes data with a single last-fragment record mark.
func Frame(data []byte) []byte {
	framed := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(framed, lastFragment|uint32(len(data)))
	copy(framed[4:], data)
	return framed
}

// Encode marshals header and body (if non-nil) into a framed message.
func Encode(header Header, body any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if body != nil {
		if _, err := xdr.Marshal(&buf, body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}
	return Frame(buf.Bytes()), nil
}

// ParseMessage decodes the header of an unframed message and returns the
// remaining body bytes.
func ParseMessage(data []byte) (*Header, []byte, error) {
	header := &Header{}
	n, err := xdr.Unmarshal(bytes.NewReader(data), header)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal header: %w", err)
	}
	return header, data[n:], nil
}

// DecodeBody unmarshals body into v.
func DecodeBody(body []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(body), v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}

// MakeCall builds a framed call.
func MakeCall(xid uint32, procedure uint32, args any) ([]byte, error) {
	return Encode(Header{
		XID:       xid,
		MsgType:   MsgCall,
		Version:   Version,
		Procedure: procedure,
	}, args)
}

// MakeReply builds a framed reply to xid.
func MakeReply(xid uint32, procedure uint32, status uint32, body any) ([]byte, error) {
	return Encode(Header{
		XID:       xid,
		MsgType:   MsgReply,
		Version:   Version,
		Procedure: procedure,
		Status:    status,
	}, body)
}

// MakeNotify builds a framed notification.
func MakeNotify(body NotifyBody) ([]byte, error) {
	return Encode(Header{
		MsgType:   MsgNotify,
		Version:   Version,
		Procedure: ProcNotify,
	}, &body)
}
