package mail

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingRecipient   = errors.New("missing recipient")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrMissingBody        = errors.New("missing body")
	ErrMissingCredentials = errors.New("missing SMTP credentials")
)

// SendRequest is one outbound message. Subject may be empty.
type SendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return ErrMissingRecipient
	}
	if strings.ContainsAny(r.To, "\r\n") {
		return ErrInvalidRecipient
	}
	if r.Body == "" {
		return ErrMissingBody
	}
	return nil
}

// DecodeRequest parses a JSON send-request. It does not validate.
func DecodeRequest(data []byte) (SendRequest, error) {
	var req SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return SendRequest{}, fmt.Errorf("decode send request: %w", err)
	}
	return req, nil
}
