package transport

import (
	"testing"

	"github.com/LdDl/overlay-mot/mot"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeJSONArray(t *testing.T) {
	data := []byte(`[
		{"bbox": [10, 20, 110, 220], "identity": "Alice", "confidence": 0.93},
		null,
		{"bbox": [1.5, 2.5, 3.5, 4.5]},
		{"identity": "NoBox"}
	]`)
	msg := Decode(websocket.TextMessage, data)
	require.Equal(t, KindDetections, msg.Kind, "unexpected error: %v", msg.Err)

	expected := []mot.RawDetection{
		{
			BBox:     [4]float64{10, 20, 110, 220},
			HasBBox:  true,
			Identity: "Alice",
			Metadata: map[string]any{"confidence": 0.93},
		},
		{
			BBox:     [4]float64{1.5, 2.5, 3.5, 4.5},
			HasBBox:  true,
			Identity: mot.UnknownIdentity,
			Metadata: map[string]any{},
		},
		{
			Identity: "NoBox",
			Metadata: map[string]any{},
		},
	}
	if diff := cmp.Diff(expected, msg.Detections); diff != "" {
		t.Errorf("Decoded detections mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSingleRecordAndNameFallback(t *testing.T) {
	msg := Decode(websocket.TextMessage, []byte(`{"bbox": [0, 0, 5, 5], "name": "Bob", "track": 7}`))
	require.Equal(t, KindDetections, msg.Kind)
	require.Len(t, msg.Detections, 1)
	assert.Equal(t, "Bob", msg.Detections[0].Identity)
	assert.Equal(t, map[string]any{"track": float64(7)}, msg.Detections[0].Metadata)

	// identity wins over name, name stays in metadata
	msg = Decode(websocket.TextMessage, []byte(`{"bbox": [0, 0, 5, 5], "identity": "Alice", "name": "Bob"}`))
	require.Len(t, msg.Detections, 1)
	assert.Equal(t, "Alice", msg.Detections[0].Identity)
	assert.Equal(t, "Bob", msg.Detections[0].Metadata["name"])
}

func TestDecodeEmpty(t *testing.T) {
	for _, payload := range []string{`[]`, `null`, `[null, null]`} {
		msg := Decode(websocket.TextMessage, []byte(payload))
		assert.Equal(t, KindDetections, msg.Kind, payload)
		assert.Empty(t, msg.Detections, payload)
	}
}

func TestDecodeMalformed(t *testing.T) {
	payloads := []string{
		`not json`,
		`42`,
		`"text"`,
		`[1, 2]`,
		`{"bbox": [1, 2, 3]}`,
		`{"bbox": "1,2,3,4"}`,
		`[{"bbox": [1, 2, 3, "4"]}]`,
	}
	for _, payload := range payloads {
		msg := Decode(websocket.TextMessage, []byte(payload))
		assert.Equal(t, KindMalformed, msg.Kind, payload)
		assert.Empty(t, msg.Detections, payload)
		assert.Equal(t, ErrMalformed, errors.Cause(msg.Err), payload)
	}
}

func TestDecodeControl(t *testing.T) {
	msg := Decode(websocket.TextMessage, []byte(`{"type": "ping"}`))
	assert.Equal(t, KindControl, msg.Kind)
	assert.True(t, msg.IsPing())

	msg = Decode(websocket.TextMessage, []byte(`{"type": "status", "queue": 3}`))
	assert.Equal(t, KindControl, msg.Kind)
	assert.False(t, msg.IsPing())

	// A record with bbox is never a control message
	msg = Decode(websocket.TextMessage, []byte(`{"type": "face", "bbox": [0, 0, 1, 1]}`))
	assert.Equal(t, KindDetections, msg.Kind)

	pong := Decode(websocket.TextMessage, Pong())
	assert.Equal(t, "pong", pong.Control)
}

func TestDecodeMsgpack(t *testing.T) {
	data, err := msgpack.Marshal([]any{
		map[string]any{"bbox": []any{int8(10), uint16(20), int64(110), float32(220)}, "identity": "Alice"},
		nil,
		map[string]any{"bbox": []any{1.5, 2.5, 3.5, 4.5}, "name": "Bob"},
	})
	require.NoError(t, err)

	msg := Decode(websocket.BinaryMessage, data)
	require.Equal(t, KindDetections, msg.Kind, "unexpected error: %v", msg.Err)
	require.Len(t, msg.Detections, 2)
	assert.Equal(t, [4]float64{10, 20, 110, 220}, msg.Detections[0].BBox)
	assert.Equal(t, "Alice", msg.Detections[0].Identity)
	assert.Equal(t, [4]float64{1.5, 2.5, 3.5, 4.5}, msg.Detections[1].BBox)
	assert.Equal(t, "Bob", msg.Detections[1].Identity)

	msg = Decode(websocket.BinaryMessage, []byte{0xc1})
	assert.Equal(t, KindMalformed, msg.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "detections", KindDetections.String())
	assert.Equal(t, "control", KindControl.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
