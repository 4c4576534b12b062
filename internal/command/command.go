// Package command encodes and decodes the compact payloads carried through
// Telegram's /start deep-link mechanism, and builds the deep links
// themselves.
//
// Grounded on original_source/src/telegram/start.rs (the StartPayload
// shape) and spec.md §4.4, using a hand-rolled tag-length binary wire
// format instead of start.rs's rmp_serde encoding (see DESIGN.md).
package command

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Action is the closed set of things a Subscription payload can request.
type Action int

const (
	Subscribe Action = iota
	Unsubscribe
)

// Subscription is the optional subscribe/unsubscribe half of a Payload.
type Subscription struct {
	QueryHash int64
	Action    Action
}

// Payload is the logical shape of a /start command: an optional "list my
// subscriptions" flag and an optional subscribe/unsubscribe request.
// Exactly the shape spec.md §4.4 names; a closed variant encoded with
// explicit optionality rather than Go's zero-value ambiguity.
type Payload struct {
	Manage       bool
	Subscription *Subscription
}

// Wire tags. Unknown tags encountered while decoding are skipped, not
// rejected, so that payloads produced by a future version remain at least
// partially readable (forward compatibility per spec.md §4.4).
const (
	tagManage      = 1
	tagSubQueryHash = 2
	tagSubAction   = 3
)

// Encode serializes p as tag-length binary: each field is one tag byte, a
// varint length, then the value bytes.
func Encode(p Payload) []byte {
	var buf []byte

	if p.Manage {
		buf = appendField(buf, tagManage, []byte{1})
	}
	if p.Subscription != nil {
		hashBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(hashBytes, uint64(p.Subscription.QueryHash))
		buf = appendField(buf, tagSubQueryHash, hashBytes)
		buf = appendField(buf, tagSubAction, []byte{byte(p.Subscription.Action)})
	}
	return buf
}

func appendField(buf []byte, tag byte, value []byte) []byte {
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(len(value)))
	buf = append(buf, value...)
	return buf
}

// Decode parses Encode's wire format. Unknown tags are skipped rather than
// rejected; a truncated or malformed length prefix is an error.
func Decode(data []byte) (Payload, error) {
	var p Payload
	var haveHash bool
	var hash int64
	var haveAction bool
	var action Action

	for len(data) > 0 {
		tag := data[0]
		data = data[1:]

		length, n := binary.Uvarint(data)
		if n <= 0 {
			return Payload{}, fmt.Errorf("command: truncated length prefix for tag %d", tag)
		}
		data = data[n:]
		if uint64(len(data)) < length {
			return Payload{}, fmt.Errorf("command: truncated value for tag %d", tag)
		}
		value := data[:length]
		data = data[length:]

		switch tag {
		case tagManage:
			p.Manage = len(value) > 0 && value[0] != 0
		case tagSubQueryHash:
			if len(value) != 8 {
				return Payload{}, fmt.Errorf("command: query hash field has length %d, want 8", len(value))
			}
			hash = int64(binary.BigEndian.Uint64(value))
			haveHash = true
		case tagSubAction:
			if len(value) != 1 {
				return Payload{}, fmt.Errorf("command: action field has length %d, want 1", len(value))
			}
			action = Action(value[0])
			haveAction = true
		default:
			// Unknown field: ignore per the forward-compatibility contract.
		}
	}

	if haveHash && haveAction {
		p.Subscription = &Subscription{QueryHash: hash, Action: action}
	}
	return p, nil
}

// EncodeToken encodes p and wraps it as URL-safe, unpadded base64 fit for
// the /start payload.
func EncodeToken(p Payload) string {
	return base64.RawURLEncoding.EncodeToString(Encode(p))
}

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) (Payload, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, fmt.Errorf("command: decode base64 token: %w", err)
	}
	return Decode(data)
}
