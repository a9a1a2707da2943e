package kkrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	ErrInvalidConfiguration      = errors.New("invalid kkrt configuration")
	ErrLengthMismatch            = errors.New("base OT material does not hold base count entries")
	ErrOutOfRange                = errors.New("OT index or correction batch outside of the session window")
	ErrProtocolDesync            = errors.New("peer message does not match the local protocol state")
	ErrCorrectionNotYetReceived  = errors.New("correction for the OT index has not been received")
	ErrInsufficientSplitCapacity = errors.New("not enough base material left to split")
	ErrChannelClosed             = errors.New("channel closed before the message was complete")
	ErrNotInitialized            = errors.New("extension session is not initialized")
	ErrAlreadyEncoded            = errors.New("OT index already encoded")
	ErrSessionFailed             = errors.New("extension session failed")
	ErrSecurityViolation         = errors.New("peer deviated from the protocol")
)

// wireErr classifies an error returned by the channel. Transport
// shutdowns become ErrChannelClosed, context errors and protocol
// errors are returned unchanged.
func wireErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	default:
		return err
	}
}
