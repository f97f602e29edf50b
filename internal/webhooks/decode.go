package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/watzon/saleorhook/internal/subscription"
)

// decodePayload binds the "event" member of body to T through the
// descriptor's projection. Unknown fields are dropped and missing ones are
// left at their zero value; only unparseable input is an error.
func decodePayload[T any](d *subscription.Descriptor, body []byte) (T, error) {
	var payload T

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	if envelope == nil {
		return payload, fmt.Errorf("%w: body is not a JSON object", ErrPayloadDecode)
	}

	raw, ok := envelope["event"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return payload, nil
	}

	var event map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return payload, fmt.Errorf("%w: event: %v", ErrPayloadDecode, err)
	}

	projected, err := json.Marshal(d.Project(event))
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}

	if err := json.Unmarshal(projected, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}

	return payload, nil
}
