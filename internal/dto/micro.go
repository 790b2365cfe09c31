package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ShortenRequestDTO represents a data transfer object (DTO) for a shorten request.
type ShortenRequestDTO struct {
	Destination string `json:"destination"`
	Public      bool   `json:"public"`
}

// MicroDTO represents a data transfer object (DTO) for a registered micro.
type MicroDTO struct {
	Code string `json:"code"`
}

// GenerateMicroDTO is the response of the form based shorten endpoint.
type GenerateMicroDTO struct {
	Status string `json:"status"`
	Micro  string `json:"micro"`
	Error  string `json:"error"`
}

// MicroLink pairs a micro with its destination.
type MicroLink struct {
	Code        string
	Destination string
}

// OrderedMicros is a mapping from micro to destination whose order is meaningful.
// It is encoded as a JSON object with keys in slice order.
type OrderedMicros []MicroLink

// Codes returns the micros in order.
func (o OrderedMicros) Codes() []string {
	codes := make([]string, len(o))
	for i, link := range o {
		codes[i] = link.Code
	}
	return codes
}

// MarshalJSON encodes o as a JSON object preserving order.
func (o OrderedMicros) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, link := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(link.Code)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(link.Destination)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into o keeping the order of its keys.
func (o *OrderedMicros) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ordered micros: expected JSON object, got %v", tok)
	}

	links := make(OrderedMicros, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		code, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ordered micros: expected string key, got %v", tok)
		}

		var destination string
		if err := dec.Decode(&destination); err != nil {
			return fmt.Errorf("ordered micros: value of %q: %w", code, err)
		}

		links = append(links, MicroLink{Code: code, Destination: destination})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = links
	return nil
}
