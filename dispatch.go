package xkb

import (
	"context"

	"github.com/danderson/xkb/fragments"
)

// handlerFunc processes one request. It returns the reply to send, or
// nil for requests without a reply.
type handlerFunc func(s *Server, r *request) ([]byte, error)

// request is a request being processed.
type request struct {
	ctx    context.Context
	client *Client
	opcode Opcode
	// in reads the request, positioned after the 4 byte request
	// header.
	in *reader
}

// done checks that the request was read successfully and consumed
// exactly.
func (r *request) done() error {
	if r.in.err != nil {
		return r.in.err
	}
	if rem := r.in.d.Remaining(); rem != 0 {
		return protoErr(BadLength, 0, "%d unexpected trailing bytes in %s request", rem, r.opcode)
	}
	return nil
}

// Dispatch processes one XKB request from client c. req is the
// complete request, starting with the extension's major opcode.
//
// Dispatch returns the bytes to send back to the client: the reply,
// nil for requests that have no reply, or an X error packet if the
// request failed. If the request failed, err is the *ProtocolError
// that the error packet reports.
func (s *Server) Dispatch(ctx context.Context, c *Client, req []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.sequence++
	var minor Opcode
	if len(req) >= 2 {
		minor = Opcode(req[1])
	}
	resp, err := s.dispatch(ctx, c, minor, req)
	if err == nil {
		return resp, nil
	}
	perr := AsProtocolError(err)
	perr.Minor = minor
	s.log.Debug("request failed", "client", c.ID, "seq", c.sequence, "request", minor, "code", perr.Code, "value", perr.Value, "err", perr.Reason)
	return s.errorPacket(c, perr), perr
}

func (s *Server) dispatch(ctx context.Context, c *Client, minor Opcode, req []byte) ([]byte, error) {
	dec := &fragments.Decoder{Order: c.Order, In: req}
	if err := dec.Skip(2); err != nil {
		return nil, errLength(err)
	}
	words, err := dec.Uint16()
	if err != nil {
		return nil, errLength(err)
	}
	if int(words)*4 != len(req) {
		return nil, protoErr(BadLength, 0, "request declares %d bytes, has %d", int(words)*4, len(req))
	}
	fn := s.handlers[minor]
	if fn == nil {
		return nil, protoErr(BadRequest, 0, "unknown XKB request %d", minor)
	}
	if minor != OpUseExtension && !c.initialized {
		return nil, protoErr(BadAccess, 0, "client did not negotiate XKB with UseExtension")
	}
	r := &request{
		ctx:    ctx,
		client: c,
		opcode: minor,
		in:     &reader{d: dec},
	}
	resp, err := fn(s, r)
	return resp, errLength(err)
}

// errorPacket encodes perr as an X error for c.
func (s *Server) errorPacket(c *Client, perr *ProtocolError) []byte {
	code := uint8(perr.Code)
	if perr.Code == BadKeyboard {
		code = ErrorBase
	}
	e := c.encoder()
	e.Uint8(errorType)
	e.Uint8(code)
	e.Uint16(c.sequence)
	e.Uint32(perr.Value)
	e.Uint16(uint16(perr.Minor))
	e.Uint8(MajorOpcode)
	e.Zero(21)
	return e.Out
}

// beginReply writes the 8 byte header of a reply that is size bytes
// long in total, and returns the reply's starting offset. size must
// be at least 32 and a multiple of 4.
func beginReply(e *fragments.Encoder, c *Client, data uint8, size int) int {
	start := e.Len()
	e.Uint8(replyType)
	e.Uint8(data)
	e.Uint16(c.sequence)
	e.Uint32(uint32((size - replyHeaderLen) / 4))
	return start
}

// endReply checks that the reply that started at start is exactly
// size bytes long, as its header declared.
func (s *Server) endReply(e *fragments.Encoder, start, size int, op Opcode) error {
	if got := e.Len() - start; got != size {
		s.log.Error("reply length does not match declared length", "request", op, "declared", size, "written", got)
		return protoErr(BadLength, 0, "internal error: %s reply is %d bytes, declared %d", op, got, size)
	}
	return nil
}
