// Package cotp реализует транспортный протокол ISO 8073 класса 0 поверх
// TPKT: рукопожатие CR/CC, сегментацию исходящих данных по согласованному
// размеру TPDU и сборку входящих фрагментов до бита EOT.
package cotp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/slonegd/mmsreport/osi/tpkt"
)

// Logger интерфейс для отладочных дампов TPDU
type Logger interface {
	Debug(format string, v ...any)
}

// Ошибки COTP соединения
var (
	ErrRefused      = errors.New("cotp: connection refused")
	ErrDisconnected = errors.New("cotp: peer disconnected")
)

const (
	// dataHeaderSize - заголовок DT TPDU: LI, код, байт EOT
	dataHeaderSize = 3
	// minTpduSize и maxTpduSize - допустимый диапазон размера TPDU
	// по ISO 8073 для класса 0
	minTpduSize = 128
	maxTpduSize = 8192
	// maxPayloadSize - предел сборки фрагментов. Защита от бесконечного
	// потока DT без EOT
	maxPayloadSize = 1 << 20
)

// TSelector транспортный селектор (TSAP)
type TSelector struct {
	Value []byte
}

// IsoConnectionParameters параметры соединения: селекторы обеих сторон
type IsoConnectionParameters struct {
	RemoteTSelector TSelector
	LocalTSelector  TSelector
}

// Indication результат разбора входящего TPDU
type Indication int

const (
	IndicationError Indication = iota
	IndicationConnect
	IndicationData
	IndicationMoreFragmentsFollow
	IndicationDisconnect
)

func (i Indication) String() string {
	switch i {
	case IndicationError:
		return "error"
	case IndicationConnect:
		return "connect"
	case IndicationData:
		return "data"
	case IndicationMoreFragmentsFollow:
		return "more-fragments"
	case IndicationDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("indication(%d)", int(i))
}

// TpktState состояние чтения текущего TPKT пакета
type TpktState int

const (
	TpktPacketComplete TpktState = iota // пакет прочитан целиком
	TpktWaiting                         // прочитана часть, нужен ещё Read
	TpktError                           // ошибка чтения или кадрирования
)

// connectionOptions настройки Connection
type connectionOptions struct {
	logger Logger
}

// ConnectionOption опция Connection
type ConnectionOption func(*connectionOptions)

// WithLogger включает отладочные дампы TPDU в обе стороны
func WithLogger(logger Logger) ConnectionOption {
	return func(opts *connectionOptions) {
		opts.logger = logger
	}
}

// Connection представляет COTP соединение поверх потока байт.
// Методы не потокобезопасны: соединением владеет один цикл обмена
type Connection struct {
	conn   io.ReadWriteCloser
	logger Logger

	tpduSizeExp uint8 // размер TPDU как степень двойки
	tselSrc     TSelector
	tselDst     TSelector

	srcRef uint16 // наша ссылка соединения из CR
	dstRef uint16 // ссылка удалённой стороны из CR/CC

	readBuffer []byte // накопитель текущего TPKT пакета вместе с заголовком
	packetSize int    // полная длина пакета из заголовка, 0 пока он не дочитан
	payload    []byte // склейка фрагментов DT до бита EOT
}

// NewConnection создаёт COTP соединение поверх установленного потока.
// Селекторы по умолчанию 00 01 с обеих сторон, размер TPDU максимальный
// до согласования
func NewConnection(conn io.ReadWriteCloser, opts ...ConnectionOption) *Connection {
	var options connectionOptions
	for _, opt := range opts {
		opt(&options)
	}

	c := &Connection{
		conn:    conn,
		logger:  options.logger,
		srcRef:  1,
		tselSrc: TSelector{Value: []byte{0x00, 0x01}},
		tselDst: TSelector{Value: []byte{0x00, 0x01}},
	}
	c.SetTpduSize(maxTpduSize)
	return c
}

// SetTpduSize устанавливает максимальный размер TPDU, округляя вниз до
// степени двойки в пределах допустимого диапазона
func (c *Connection) SetTpduSize(size int) {
	if size > maxTpduSize {
		size = maxTpduSize
	}
	if size < minTpduSize {
		size = minTpduSize
	}
	c.tpduSizeExp = uint8(bits.Len(uint(size)) - 1)
}

func (c *Connection) tpduSize() int {
	return 1 << c.tpduSizeExp
}

// GetPayload возвращает собранные из фрагментов данные последнего
// IndicationData
func (c *Connection) GetPayload() []byte {
	return c.payload
}

// ResetPayload сбрасывает накопитель фрагментов перед следующим пакетом
func (c *Connection) ResetPayload() {
	c.payload = c.payload[:0]
}

// SendConnectionRequestMessage отправляет CR TPDU с параметрами:
// размер TPDU (0xc0), calling TSAP (0xc1), called TSAP (0xc2)
func (c *Connection) SendConnectionRequestMessage(params *IsoConnectionParameters) error {
	c.tselDst = params.RemoteTSelector
	c.tselSrc = params.LocalTSelector

	options := c.encodeOptions()
	tpdu := make([]byte, 0, 7+len(options))
	tpdu = append(tpdu,
		byte(6+len(options)), byte(COTPTypeConnectionRequest),
		0x00, 0x00, // DST REF ещё не известна
		byte(c.srcRef>>8), byte(c.srcRef),
		0x00) // класс 0
	tpdu = append(tpdu, options...)

	return c.send(tpdu)
}

// SendConnectionResponseMessage отправляет CC TPDU с теми же параметрами,
// что пришли в CR. Серверная сторона рукопожатия
func (c *Connection) SendConnectionResponseMessage() error {
	options := c.encodeOptions()
	tpdu := make([]byte, 0, 7+len(options))
	tpdu = append(tpdu,
		byte(6+len(options)), byte(COTPTypeConnectionConfirm),
		byte(c.dstRef>>8), byte(c.dstRef),
		byte(c.srcRef>>8), byte(c.srcRef),
		0x00)
	tpdu = append(tpdu, options...)

	return c.send(tpdu)
}

// SendDataMessage отправляет данные, нарезая их на DT TPDU по
// согласованному размеру. Бит EOT стоит только в последнем фрагменте
func (c *Connection) SendDataMessage(payload []byte) error {
	limit := c.tpduSize() - dataHeaderSize

	for {
		chunk, last := payload, true
		if len(chunk) > limit {
			chunk, last = payload[:limit], false
		}
		payload = payload[len(chunk):]

		eot := byte(0x00)
		if last {
			eot = 0x80
		}
		tpdu := make([]byte, 0, dataHeaderSize+len(chunk))
		tpdu = append(tpdu, 0x02, byte(COTPTypeData), eot)
		tpdu = append(tpdu, chunk...)

		if err := c.send(tpdu); err != nil {
			return fmt.Errorf("failed to send fragment: %w", err)
		}
		if last {
			return nil
		}
	}
}

// encodeOptions кодирует переменную часть CR/CC
func (c *Connection) encodeOptions() []byte {
	out := []byte{0xc0, 0x01, c.tpduSizeExp}
	if len(c.tselSrc.Value) > 0 {
		out = append(out, 0xc1, byte(len(c.tselSrc.Value)))
		out = append(out, c.tselSrc.Value...)
	}
	if len(c.tselDst.Value) > 0 {
		out = append(out, 0xc2, byte(len(c.tselDst.Value)))
		out = append(out, c.tselDst.Value...)
	}
	return out
}

// send оборачивает TPDU в TPKT и пишет в сокет
func (c *Connection) send(tpdu []byte) error {
	if c.logger != nil {
		c.logger.Debug("TX: % x", tpdu)
	}
	return tpkt.Send(c.conn, tpdu)
}

// ReadToTpktBuffer дочитывает текущий TPKT пакет. Возвращает TpktWaiting,
// пока пакет не собран целиком: вызывающий цикл может проверить контекст
// или дедлайн между чтениями
func (c *Connection) ReadToTpktBuffer(ctx context.Context) (TpktState, error) {
	if err := ctx.Err(); err != nil {
		return TpktError, err
	}

	if len(c.readBuffer) < tpkt.HeaderSize {
		state, err := c.fill(tpkt.HeaderSize)
		if state != TpktPacketComplete {
			return state, err
		}
		size, err := tpkt.ValidateHeader(c.readBuffer)
		if err != nil {
			return TpktError, err
		}
		c.packetSize = int(size)
	}

	if len(c.readBuffer) < c.packetSize {
		return c.fill(c.packetSize)
	}
	return TpktPacketComplete, nil
}

// fill дочитывает readBuffer до target байт за один Read. Частичное
// чтение не теряется: остаток доберёт следующий вызов
func (c *Connection) fill(target int) (TpktState, error) {
	chunk := make([]byte, target-len(c.readBuffer))
	n, err := c.conn.Read(chunk)
	c.readBuffer = append(c.readBuffer, chunk[:n]...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return TpktError, fmt.Errorf("%w: socket closed", ErrDisconnected)
		}
		return TpktError, fmt.Errorf("read error: %w", err)
	}
	if len(c.readBuffer) < target {
		return TpktWaiting, nil
	}
	return TpktPacketComplete, nil
}

// ParseIncomingMessage разбирает собранный TPKT пакет и освобождает
// буфер под следующий. Фрагменты DT копятся в payload до бита EOT
func (c *Connection) ParseIncomingMessage() (Indication, error) {
	defer func() {
		c.readBuffer = c.readBuffer[:0]
		c.packetSize = 0
	}()

	if len(c.readBuffer) < tpkt.HeaderSize {
		return IndicationError, errors.New("tpkt packet incomplete")
	}
	tpduRaw := c.readBuffer[tpkt.HeaderSize:]
	if c.logger != nil {
		c.logger.Debug("RX: % x", tpduRaw)
	}

	pdu, err := ParseCOTP(tpduRaw)
	if err != nil {
		return IndicationError, err
	}

	switch pdu.Type {
	case COTPTypeConnectionRequest, COTPTypeConnectionConfirm:
		if pdu.Class != 0 {
			return IndicationError, fmt.Errorf("%w: protocol class %d not supported", ErrRefused, pdu.Class)
		}
		c.dstRef = pdu.SrcRef
		c.applyOptions(pdu)
		return IndicationConnect, nil

	case COTPTypeData:
		if len(c.payload)+len(pdu.Data) > maxPayloadSize {
			return IndicationError, fmt.Errorf("reassembled payload exceeds %d bytes", maxPayloadSize)
		}
		c.payload = append(c.payload, pdu.Data...)
		if !pdu.IsLastDataUnit {
			return IndicationMoreFragmentsFollow, nil
		}
		return IndicationData, nil

	case COTPTypeDisconnectRequest, COTPTypeDisconnectConfirm:
		return IndicationDisconnect, nil

	default:
		return IndicationError, fmt.Errorf("unknown TPDU type: %#x", byte(pdu.Type))
	}
}

// applyOptions принимает согласованные параметры CR/CC: встречное
// предложение размера TPDU и селекторы, чтобы ответить теми же
func (c *Connection) applyOptions(pdu *COTP) {
	if pdu.TpduSize != 0 {
		c.SetTpduSize(1 << pdu.TpduSize)
	}
	if len(pdu.SrcTSAP) > 0 {
		c.tselSrc = TSelector{Value: pdu.SrcTSAP}
	}
	if len(pdu.DstTSAP) > 0 {
		c.tselDst = TSelector{Value: pdu.DstTSAP}
	}
}
