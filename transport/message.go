// Package transport implements the asynchronous channel to recognition service.
package transport

import (
	"encoding/json"

	"github.com/LdDl/overlay-mot/mot"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrMalformed is returned (as cause) when response can't be interpreted
	ErrMalformed = errors.New("malformed message")
	// ErrChannelClosed is returned when peer closed the channel
	ErrChannelClosed = errors.New("channel closed")
)

// Kind is type of incoming message
type Kind int

const (
	// KindDetections is a recognition response (possibly with zero detections)
	KindDetections Kind = iota
	// KindControl is a keepalive message which is not a response
	KindControl
	// KindMalformed is a response which could not be decoded
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindDetections:
		return "detections"
	case KindControl:
		return "control"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

const (
	controlPing = "ping"
	controlPong = "pong"
)

// Message is decoded incoming message
type Message struct {
	Kind       Kind
	Detections []mot.RawDetection
	// Control is value of "type" field for control messages
	Control string
	// Err explains why message is malformed
	Err error
}

// IsPing reports whether message is keepalive request which should be answered with Pong
func (msg Message) IsPing() bool {
	return msg.Kind == KindControl && msg.Control == controlPing
}

// Pong returns payload answering ping control message
func Pong() []byte {
	return []byte(`{"type":"` + controlPong + `"}`)
}

func malformed(err error) Message {
	return Message{
		Kind: KindMalformed,
		Err:  err,
	}
}

// Decode parses payload received from recognition service.
// Text messages are JSON, binary messages are MessagePack.
// Payload is either a single record, an array of records or a control object {"type": "..."}.
func Decode(messageType int, data []byte) Message {
	var payload any
	switch messageType {
	case websocket.BinaryMessage:
		if err := msgpack.Unmarshal(data, &payload); err != nil {
			return malformed(errors.Wrapf(ErrMalformed, "can't decode msgpack: %s", err))
		}
	default:
		if err := json.Unmarshal(data, &payload); err != nil {
			return malformed(errors.Wrapf(ErrMalformed, "can't decode JSON: %s", err))
		}
	}
	return decodePayload(payload)
}

func decodePayload(payload any) Message {
	switch value := payload.(type) {
	case nil:
		return Message{Kind: KindDetections, Detections: []mot.RawDetection{}}
	case map[string]any:
		if control, ok := controlType(value); ok {
			return Message{Kind: KindControl, Control: control}
		}
		detection, err := decodeRecord(value)
		if err != nil {
			return malformed(err)
		}
		return Message{Kind: KindDetections, Detections: []mot.RawDetection{detection}}
	case []any:
		detections := make([]mot.RawDetection, 0, len(value))
		for i, item := range value {
			if item == nil {
				continue
			}
			record, ok := item.(map[string]any)
			if !ok {
				return malformed(errors.Wrapf(ErrMalformed, "record %d is %T, not an object", i, item))
			}
			detection, err := decodeRecord(record)
			if err != nil {
				return malformed(errors.Wrapf(err, "record %d", i))
			}
			detections = append(detections, detection)
		}
		return Message{Kind: KindDetections, Detections: detections}
	default:
		return malformed(errors.Wrapf(ErrMalformed, "unexpected payload type %T", payload))
	}
}

func controlType(record map[string]any) (string, bool) {
	if _, ok := record["bbox"]; ok {
		return "", false
	}
	control, ok := record["type"].(string)
	return control, ok
}

func decodeRecord(record map[string]any) (mot.RawDetection, error) {
	detection := mot.RawDetection{
		Identity: mot.UnknownIdentity,
		Metadata: make(map[string]any, len(record)),
	}
	identityKey := ""
	for _, key := range []string{"identity", "name"} {
		if identity, ok := record[key].(string); ok && identity != "" {
			detection.Identity = identity
			identityKey = key
			break
		}
	}
	if rawBBox, ok := record["bbox"]; ok && rawBBox != nil {
		bbox, err := decodeBBox(rawBBox)
		if err != nil {
			return mot.RawDetection{}, err
		}
		detection.BBox = bbox
		detection.HasBBox = true
	}
	for key, value := range record {
		if key == "bbox" || key == identityKey {
			continue
		}
		detection.Metadata[key] = value
	}
	return detection, nil
}

func decodeBBox(raw any) ([4]float64, error) {
	var bbox [4]float64
	values, ok := raw.([]any)
	if !ok || len(values) != 4 {
		return bbox, errors.Wrapf(ErrMalformed, "bbox must be an array of 4 numbers, got %v", raw)
	}
	for i, value := range values {
		number, ok := toFloat64(value)
		if !ok {
			return bbox, errors.Wrapf(ErrMalformed, "bbox[%d] is %T, not a number", i, value)
		}
		bbox[i] = number
	}
	return bbox, nil
}

func toFloat64(value any) (float64, bool) {
	switch number := value.(type) {
	case float64:
		return number, true
	case float32:
		return float64(number), true
	case int:
		return float64(number), true
	case int8:
		return float64(number), true
	case int16:
		return float64(number), true
	case int32:
		return float64(number), true
	case int64:
		return float64(number), true
	case uint:
		return float64(number), true
	case uint8:
		return float64(number), true
	case uint16:
		return float64(number), true
	case uint32:
		return float64(number), true
	case uint64:
		return float64(number), true
	default:
		return 0, false
	}
}
