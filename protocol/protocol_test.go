package protocol

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Frame{Code: CodeUpDownloadQuery, Payload: []byte("hello")}
	require.NoError(t, WriteFrame(&buf, want))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, want.Code, got.Code)
	require.Equal(t, want.Payload, got.Payload)
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Code: CodeDataQueryID}))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	hdr := make([]byte, 16)
	hdr[8] = 0xff // length field, little-endian, absurdly large
	hdr[9] = 0xff
	hdr[10] = 0xff
	hdr[11] = 0xff
	hdr[12] = 0xff
	buf.Write(hdr)

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestStateMachineAllowsQueryAndResultWhileReady(t *testing.T) {
	m := NewMachine()
	require.Equal(t, StateReady, m.State())
	require.NoError(t, m.Allow(EventQuery))
	require.NoError(t, m.Allow(EventResultRequest))
}

func TestStateMachineRejectsAfterExit(t *testing.T) {
	m := NewMachine()
	m.Exit()
	require.Equal(t, StateExit, m.State())
	require.Error(t, m.Allow(EventQuery))
	require.Error(t, m.Allow(EventResultRequest))
}

func testKeyBundle(t *testing.T) registry.KeyBundle {
	params := fhe.NewCKKSParameters(4, 4)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)
	return registry.KeyBundle{Params: params, Pubkey: pk, Relin: rlk}
}

func TestEncKeysEnvelopeRoundTrip(t *testing.T) {
	bundle := testKeyBundle(t)
	data, err := EncodeEncKeys(7, bundle)
	require.NoError(t, err)

	keyID, got, err := DecodeEncKeys(data)
	require.NoError(t, err)
	require.Equal(t, int64(7), keyID)
	require.Equal(t, bundle.Params, got.Params)
}

func TestQueryEnvelopeRoundTrip(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 4)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	_, pk, err := gen.GenKeyPair()
	require.NoError(t, err)

	pt, err := engine.EncodeScalar(5, params.Scale)
	require.NoError(t, err)
	ct, err := engine.Encrypt(pt, pk)
	require.NoError(t, err)

	q := queue.Query{KeyID: 1, Dataset: "ds", Model: "m", InH: 1, InW: 1, InC: 1, Input: []fhe.Ciphertext{ct}}
	data, err := EncodeQuery(q)
	require.NoError(t, err)

	got, err := DecodeQuery(data)
	require.NoError(t, err)
	require.Equal(t, q.KeyID, got.KeyID)
	require.Equal(t, q.Dataset, got.Dataset)
	require.Equal(t, q.Model, got.Model)
	require.Len(t, got.Input, 1)
}

func TestQueryIDEnvelopeRoundTrip(t *testing.T) {
	data, err := EncodeQueryID(42)
	require.NoError(t, err)
	got, err := DecodeQueryID(data)
	require.NoError(t, err)
	require.Equal(t, int64(42), got)
}

func TestResultRequestEnvelopeRoundTrip(t *testing.T) {
	data, err := EncodeResultRequest(9)
	require.NoError(t, err)
	got, err := DecodeResultRequest(data)
	require.NoError(t, err)
	require.Equal(t, int64(9), got)
}

func TestResultEnvelopeRoundTrip(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 4)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	_, pk, err := gen.GenKeyPair()
	require.NoError(t, err)

	pt, err := engine.EncodeScalar(11, params.Scale)
	require.NoError(t, err)
	ct, err := engine.Encrypt(pt, pk)
	require.NoError(t, err)

	r := queue.Result{Success: true, Outputs: []fhe.Ciphertext{ct}}
	data, err := EncodeResult(r)
	require.NoError(t, err)

	got, err := DecodeResult(data)
	require.NoError(t, err)
	require.True(t, got.Success)
	require.Len(t, got.Outputs, 1)
}

func TestDispatcherServeQueryThenResult(t *testing.T) {
	reg := registry.New()
	queries := queue.New[queue.Query](8)
	results := queue.New[queue.Result](8)
	log := logrus.NewEntry(logrus.New())

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	d := NewDispatcher(reg, queries, results, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- d.Serve(ctx, serverConn) }()

	q := queue.Query{KeyID: 1, Dataset: "ds", Model: "m"}
	payload, err := EncodeQuery(q)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(clientConn, Frame{Code: CodeUpDownloadQuery, Payload: payload}))

	reply, err := ReadFrame(clientConn)
	require.NoError(t, err)
	require.Equal(t, CodeDataQueryID, reply.Code)
	queryID, err := DecodeQueryID(reply.Payload)
	require.NoError(t, err)
	require.NotZero(t, queryID)

	require.NoError(t, results.Push(queryID, queue.Result{Success: true}))

	reqPayload, err := EncodeResultRequest(queryID)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(clientConn, Frame{Code: CodeUpDownloadResult, Payload: reqPayload}))

	resultReply, err := ReadFrame(clientConn)
	require.NoError(t, err)
	require.Equal(t, CodeDataResult, resultReply.Code)
	result, err := DecodeResult(resultReply.Payload)
	require.NoError(t, err)
	require.True(t, result.Success)

	clientConn.Close()
	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after connection close")
	}
}
