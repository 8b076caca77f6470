// Package protocol encodes requests and responses for the engine API socket.
//
// Each message is a JSON document preceded by its length as a 4-byte
// little-endian unsigned integer. Requests name the command by its wire value
// from the command vocabulary.
package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/louisbranch/enginectl/internal/engine/command"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
)

// Version is the engine API envelope version this package speaks.
const Version = 1

// MaxFrameSize bounds a single message in either direction.
const MaxFrameSize = 16 << 20

const headerSize = 4

// Origin identifies the component that issued a request.
type Origin struct {
	Name   string `json:"name"`
	Module string `json:"module"`
}

// Request is one engine API call.
type Request struct {
	Command    command.Identifier
	Origin     Origin
	Parameters json.RawMessage
}

type wireRequest struct {
	Version    int             `json:"version"`
	Origin     Origin          `json:"origin"`
	Command    string          `json:"command"`
	Parameters json.RawMessage `json:"parameters"`
}

// Response is the engine's answer to a request. Error 0 means success.
type Response struct {
	Error   int             `json:"error"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the engine accepted the request.
func (r Response) OK() bool {
	return r.Error == 0
}

// NewRequest builds a request for id with params marshalled as the parameters
// object. Nil params encode as an empty object.
func NewRequest(id command.Identifier, origin Origin, params any) (Request, error) {
	if id.IsZero() {
		return Request{}, apperrors.New(apperrors.CodeUnknownCommand, "request command is required")
	}
	raw := json.RawMessage("{}")
	switch p := params.(type) {
	case nil:
	case json.RawMessage:
		if len(p) > 0 {
			raw = p
		}
	default:
		encoded, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s parameters: %w", id, err)
		}
		raw = encoded
	}
	if !json.Valid(raw) || !isObject(raw) {
		return Request{}, apperrors.WithMetadata(
			apperrors.CodeInvalidParameters,
			fmt.Sprintf("%s parameters must be a JSON object", id),
			map[string]string{"command": id.WireValue()},
		)
	}
	return Request{Command: id, Origin: origin, Parameters: raw}, nil
}

// MarshalJSON renders the request envelope.
func (r Request) MarshalJSON() ([]byte, error) {
	if r.Command.IsZero() {
		return nil, apperrors.New(apperrors.CodeUnknownCommand, "request command is required")
	}
	params := r.Parameters
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return json.Marshal(wireRequest{
		Version:    Version,
		Origin:     r.Origin,
		Command:    r.Command.WireValue(),
		Parameters: params,
	})
}

// UnmarshalJSON parses a request envelope and resolves its command through
// the command vocabulary. Unknown wire values fail with
// command.ErrUnknownCommand.
func (r *Request) UnmarshalJSON(data []byte) error {
	var wire wireRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineProtocol, "decode request", err)
	}
	if wire.Version != Version {
		return apperrors.WithMetadata(
			apperrors.CodeEngineProtocol,
			fmt.Sprintf("unsupported request version %d", wire.Version),
			map[string]string{"version": fmt.Sprint(wire.Version)},
		)
	}
	id, err := command.Lookup(wire.Command)
	if err != nil {
		return err
	}
	r.Command = id
	r.Origin = wire.Origin
	r.Parameters = wire.Parameters
	return nil
}

// WriteFrame writes payload with its length header.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return apperrors.New(apperrors.CodeEngineProtocol, fmt.Sprintf("frame of %d bytes exceeds limit", len(payload)))
	}
	frame := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, apperrors.New(apperrors.CodeEngineProtocol, fmt.Sprintf("frame of %d bytes exceeds limit", size))
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// WriteRequest frames and writes req.
func WriteRequest(w io.Writer, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadRequest reads and decodes one framed request.
func ReadRequest(r io.Reader) (Request, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// WriteResponse frames and writes resp.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadResponse reads and decodes one framed response.
func ReadResponse(r io.Reader) (Response, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeEngineProtocol, "decode response", err)
	}
	return resp, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
