// Package tpkt реализует транспортный уровень TPKT (RFC 1006) поверх TCP.
// Каждый пакет: заголовок 4 байта (версия, резерв, длина) + полезная нагрузка.
package tpkt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Ошибки транспортного уровня
var (
	ErrTransport = errors.New("tpkt: transport failure")
	ErrFraming   = errors.New("tpkt: invalid framing")
)

const (
	// HeaderSize размер заголовка TPKT в байтах
	HeaderSize = 4
	// Version версия протокола TPKT
	Version = 0x03
	// MaxPayloadSize максимальный размер полезной нагрузки одного пакета
	MaxPayloadSize = 0xFFFF - HeaderSize
)

// Send отправляет один TPKT пакет с полезной нагрузкой payload
func Send(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload too large: %d bytes", ErrFraming, len(payload))
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = Version
	frame[1] = 0x00
	binary.BigEndian.PutUint16(frame[2:4], uint16(HeaderSize+len(payload)))
	copy(frame[HeaderSize:], payload)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: write: %w", ErrTransport, err)
	}

	return nil
}

// Recv читает ровно один TPKT пакет и возвращает полезную нагрузку
func Recv(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrTransport, err)
	}

	length, err := ValidateHeader(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, int(length)-HeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", ErrTransport, err)
	}

	return payload, nil
}

// ValidateHeader проверяет заголовок TPKT и возвращает полную длину пакета
// (включая сам заголовок)
func ValidateHeader(header []byte) (uint16, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("%w: header too short: %d bytes", ErrFraming, len(header))
	}

	if header[0] != Version {
		return 0, fmt.Errorf("%w: unexpected version 0x%02x", ErrFraming, header[0])
	}

	if header[1] != 0x00 {
		return 0, fmt.Errorf("%w: reserved byte 0x%02x", ErrFraming, header[1])
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < HeaderSize {
		return 0, fmt.Errorf("%w: invalid length %d", ErrFraming, length)
	}

	return length, nil
}
