package websockets

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeOfferReceived is sent when a debtor proposes an offer to the local agent.
	MessageTypeOfferReceived MessageType = "offerReceived"
	// MessageTypeOfferConsented is sent when the creditor agrees to reveal its chain.
	MessageTypeOfferConsented MessageType = "offerConsented"
	// MessageTypeOfferCanceled is sent when either side cancels an offer.
	MessageTypeOfferCanceled MessageType = "offerCanceled"
	// MessageTypeOfferCompleted is sent when the offer's transaction is committed to the local chain.
	MessageTypeOfferCompleted MessageType = "offerCompleted"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// OfferSignalPayload is the payload of every offer signal.
type OfferSignalPayload struct {
	OfferID  string `json:"offer_id"`
	State    string `json:"state"`
	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   string `json:"amount"`
}
