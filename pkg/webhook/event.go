package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types delivered by Alchemy Notify.
const (
	TypeMinedTransaction = "MINED_TRANSACTION"
	TypeAddressActivity  = "ADDRESS_ACTIVITY"
)

// Event is the common webhook envelope. Payload keeps the raw "event" object
// for the type-specific decoders below.
type Event struct {
	WebhookID string          `json:"webhookId"`
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"event"`
}

// MinedTransaction is the payload of a MINED_TRANSACTION event.
type MinedTransaction struct {
	AppID       string      `json:"appId"`
	Network     string      `json:"network"`
	Transaction Transaction `json:"transaction"`
}

// Transaction is the subset of a mined transaction that callers usually need.
type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
	Nonce       string `json:"nonce"`
}

// AddressActivity is the payload of an ADDRESS_ACTIVITY event.
type AddressActivity struct {
	Network  string     `json:"network"`
	Activity []Activity `json:"activity"`
}

// Activity is one transfer observed for a watched address.
type Activity struct {
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	BlockNum    string  `json:"blockNum"`
	Hash        string  `json:"hash"`
	Category    string  `json:"category"`
	Asset       string  `json:"asset"`
	Value       float64 `json:"value"`
}

// MinedTransaction decodes the payload of a MINED_TRANSACTION event.
func (e Event) MinedTransaction() (MinedTransaction, error) {
	var mt MinedTransaction
	if e.Type != TypeMinedTransaction {
		return mt, fmt.Errorf("event type %q is not %s", e.Type, TypeMinedTransaction)
	}
	if err := json.Unmarshal(e.Payload, &mt); err != nil {
		return mt, fmt.Errorf("decode mined transaction: %w", err)
	}
	return mt, nil
}

// AddressActivity decodes the payload of an ADDRESS_ACTIVITY event.
func (e Event) AddressActivity() (AddressActivity, error) {
	var aa AddressActivity
	if e.Type != TypeAddressActivity {
		return aa, fmt.Errorf("event type %q is not %s", e.Type, TypeAddressActivity)
	}
	if err := json.Unmarshal(e.Payload, &aa); err != nil {
		return aa, fmt.Errorf("decode address activity: %w", err)
	}
	return aa, nil
}
