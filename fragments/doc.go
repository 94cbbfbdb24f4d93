// Package fragments provides low-level encoding and decoding helpers
// to construct and parse X11 protocol requests, replies and events.
//
// The provided encoder and decoder are very low level, and do not
// encode any XKB semantics. It is the caller's responsibility to
// produce valid X11 messages using these tools.
//
// Unlike most wire formats, X11 does not align multi-byte fields
// implicitly: every protocol structure is laid out by hand so that its
// fields fall on natural boundaries, and variable-length lists are
// padded to a multiple of 4 bytes explicitly. The encoder and decoder
// follow that model, and only insert or skip padding when asked to
// with Pad.
package fragments
