package room

// envelope builds the {"type": ..., "payload": ...} shape every outbound
// wire message shares; the Dispatcher's inbound side matches on Type, the
// client unpacks Payload per message type.
type wireEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func envelope(msgType string, payload interface{}) wireEnvelope {
	return wireEnvelope{Type: msgType, Payload: payload}
}
