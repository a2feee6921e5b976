// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is the Go client for the valgen session protocol.
//
// An instrumented program dials one session, draws values with Between at
// each decision point, and reports its outcome with NotifyExit. The client
// serializes requests on the connection: the protocol is strict
// request/reply, one outstanding request at a time.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
)

// Client-side protocol errors.
var (
	// ErrMalformed is returned when the server rejects a request as
	// structurally invalid (status 22).
	ErrMalformed = errors.New("server rejected request as malformed")

	// ErrUnsupported is returned when the server refuses a request it cannot
	// serve: an unknown type tag or inverted bounds (status 23).
	ErrUnsupported = errors.New("server cannot serve request")

	// ErrBadReply is returned when the server's reply violates the protocol.
	ErrBadReply = errors.New("malformed server reply")

	// ErrClosed is returned when the session has already been closed.
	ErrClosed = errors.New("session closed")
)

const defaultHandshakeTimeout = 10 * time.Second

// Client is a single valgen session over one WebSocket connection.
//
// Thread Safety: safe for concurrent use; requests are serialized internally.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Dial opens a session against a valgen server.
//
// Inputs:
//
//	ctx - Controls the handshake deadline.
//	url - The session endpoint, e.g. "ws://localhost:8080/v1/valgen/session".
//
// Outputs:
//
//	*Client - The connected session. Call Close when done.
//	error - Non-nil if the handshake fails.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: defaultHandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// roundTrip sends one request frame and reads exactly one reply frame.
func (c *Client) roundTrip(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		c.conn.SetReadDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
		c.conn.SetReadDeadline(time.Time{})
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, req.Encode()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: non-binary frame", ErrBadReply)
	}

	reply, err := wire.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	return reply, nil
}

// statusOf extracts the reply status, mapping the two refusal statuses to
// their sentinel errors.
func statusOf(reply *wire.Message) (wire.Status, error) {
	b, ok := reply.Byte(0)
	if !ok {
		return 0, fmt.Errorf("%w: missing status", ErrBadReply)
	}
	status := wire.Status(b)
	switch status {
	case wire.StatusMalformed:
		return status, ErrMalformed
	case wire.StatusUnsupported:
		return status, ErrUnsupported
	}
	return status, nil
}

// NotifyExit reports the run's outcome and ends the session. The returned
// flag echoes the server's acknowledgment and always matches success on a
// conforming server.
func (c *Client) NotifyExit(ctx context.Context, success bool) (bool, error) {
	var flag byte
	if success {
		flag = 1
	}
	req := wire.NewMessage().AppendByte(wire.FlagExit).AppendByte(flag)

	reply, err := c.roundTrip(ctx, req)
	if err != nil {
		return false, err
	}

	status, err := statusOf(reply)
	if err != nil {
		return false, err
	}
	if status != wire.StatusExitAck {
		return false, fmt.Errorf("%w: status %s to exit request", ErrBadReply, status)
	}
	echo, ok := reply.Byte(1)
	if !ok {
		return false, fmt.Errorf("%w: exit ack missing success flag", ErrBadReply)
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return echo != 0, nil
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
