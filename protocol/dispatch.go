package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/chorus-fhe/ppcnn/internal/idgen"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
)

// Dispatcher handles the frames of one accepted connection against the
// server's shared registry and queues (spec §4.10). One Dispatcher, and the
// Machine it owns, exists per connection.
type Dispatcher struct {
	Registry *registry.Registry
	Queries  *queue.Queries
	Results  *queue.Results
	Log      *logrus.Entry

	machine *Machine
}

// NewDispatcher returns a Dispatcher starting in StateReady.
func NewDispatcher(reg *registry.Registry, queries *queue.Queries, results *queue.Results, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{Registry: reg, Queries: queries, Results: results, Log: log, machine: NewMachine()}
}

// Serve reads and handles frames from rw until it returns io.EOF, ctx is
// cancelled, or a protocol error forces the connection closed.
func (d *Dispatcher) Serve(ctx context.Context, rw io.ReadWriter) error {
	defer d.machine.Exit()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := ReadFrame(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		reply, err := d.handle(ctx, frame)
		if err != nil {
			d.Log.WithError(err).WithField("code", frame.Code).Warn("dispatch failed")
			return err
		}
		if reply != nil {
			if err := WriteFrame(rw, *reply); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, frame Frame) (*Frame, error) {
	switch frame.Code {
	case CodeDataEncKeys:
		return nil, d.handleEncKeys(frame)
	case CodeUpDownloadQuery:
		if err := d.machine.Allow(EventQuery); err != nil {
			return nil, err
		}
		return d.handleQuery(frame)
	case CodeUpDownloadResult:
		if err := d.machine.Allow(EventResultRequest); err != nil {
			return nil, err
		}
		return d.handleResultRequest(ctx, frame)
	default:
		return nil, fmt.Errorf("dispatch: unknown control code 0x%x: %w", uint64(frame.Code), ppcnnerr.ErrProtocol)
	}
}

func (d *Dispatcher) handleEncKeys(frame Frame) error {
	keyID, bundle, err := DecodeEncKeys(frame.Payload)
	if err != nil {
		return err
	}
	d.Registry.Register(keyID, bundle)
	d.Log.WithField("key_id", keyID).Debug("registered encryption keys")
	return nil
}

func (d *Dispatcher) handleQuery(frame Frame) (*Frame, error) {
	q, err := DecodeQuery(frame.Payload)
	if err != nil {
		return nil, err
	}
	queryID := idgen.Queries.Next()
	if err := d.Queries.Push(queryID, q); err != nil {
		return nil, err
	}
	payload, err := EncodeQueryID(queryID)
	if err != nil {
		return nil, err
	}
	return &Frame{Code: CodeDataQueryID, Payload: payload}, nil
}

func (d *Dispatcher) handleResultRequest(ctx context.Context, frame Frame) (*Frame, error) {
	queryID, err := DecodeResultRequest(frame.Payload)
	if err != nil {
		return nil, err
	}
	result, err := d.Results.BlockingPop(ctx, queryID)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeResult(result)
	if err != nil {
		return nil, err
	}
	return &Frame{Code: CodeDataResult, Payload: payload}, nil
}
