// Package mmsreport реализует клиент отчётов IEC 61850: подключение к IED
// по стеку MMS (TPKT/COTP/session/presentation/ACSE), активацию блоков
// управления отчётами (RCB) и приём informationReport. Декодированные
// отчёты уходят в обработчик и, при настройке, в VictoriaMetrics.
package mmsreport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/slonegd/mmsreport/logger"
	"github.com/slonegd/mmsreport/osi/acse"
	"github.com/slonegd/mmsreport/osi/cotp"
	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/osi/presentation"
	"github.com/slonegd/mmsreport/osi/session"
	"github.com/slonegd/mmsreport/rcb"
	"github.com/slonegd/mmsreport/report"
	"github.com/slonegd/mmsreport/sink"
)

// Ошибки этапов установления соединения. CLI различает их для кода выхода
var (
	// ErrConnect - TCP или COTP соединение не установлено
	ErrConnect = errors.New("connection failed")
	// ErrInitiate - MMS ассоциация не установлена
	ErrInitiate = errors.New("mms initiate failed")
)

// Таймауты этапов работы клиента
const (
	// dialTimeout - установление TCP соединения
	dialTimeout = 5 * time.Second
	// connectTimeout - ожидание COTP Connection Confirm
	connectTimeout = 5 * time.Second
	// requestTimeout - один MMS confirmed-обмен (запрос-ответ)
	requestTimeout = 10 * time.Second
	// idleTimeout - чтение из сокета в цикле приёма отчётов
	idleTimeout = 60 * time.Second
)

// invokeIDBase - начальное значение счётчика invokeID, далее счётчик
// монотонно растёт с переполнением по uint16
const invokeIDBase = 0x012C

// tpduSize - максимальный размер TPDU, запрашиваемый в COTP CR
const tpduSize = 1024

// ReportHandler вызывается на каждый декодированный отчёт
type ReportHandler func(*report.Report)

type options struct {
	domain     string
	rcbs       []string
	intgPdMs   uint64
	keepAlive  bool
	labels     report.Labels
	sink       *sink.Sink
	handler    ReportHandler
	logger     zerolog.Logger
	debug      bool
	verbose    bool
	remoteTSel []byte
	localTSel  []byte
}

func defaultOptions() options {
	return options{
		intgPdMs:   rcb.DefaultIntgPdMs,
		logger:     zlog.Logger,
		remoteTSel: []byte{0x00, 0x01},
		localTSel:  []byte{0x00, 0x01},
	}
}

// Option настраивает клиент
type Option func(*options)

// WithDomain задаёт домен MMS (логическое устройство IED), в котором
// ищутся RCB и к которому приводятся ссылки без домена
func WithDomain(domain string) Option {
	return func(o *options) { o.domain = domain }
}

// WithRCBs задаёт ссылки на RCB для подписки. Ссылка без домена
// дополняется доменом клиента. Пустой список включает поиск RCB
// через GetNameList
func WithRCBs(refs ...string) Option {
	return func(o *options) { o.rcbs = append(o.rcbs, refs...) }
}

// WithIntgPd задаёт период Integrity-отчётов в миллисекундах
func WithIntgPd(ms uint64) Option {
	return func(o *options) { o.intgPdMs = ms }
}

// WithKeepAlive включает MMS identify при простое цикла приёма
func WithKeepAlive() Option {
	return func(o *options) { o.keepAlive = true }
}

// WithLabels задаёт подписи членов наборов данных из SCL-файла
func WithLabels(labels report.Labels) Option {
	return func(o *options) { o.labels = labels }
}

// WithSink направляет числовые значения отчётов в VictoriaMetrics
func WithSink(s *sink.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithHandler задаёт обработчик декодированных отчётов
func WithHandler(handler ReportHandler) Option {
	return func(o *options) { o.handler = handler }
}

// WithLogger задаёт логгер клиента
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDebug включает hex-дамп отправляемых и принимаемых пакетов
func WithDebug() Option {
	return func(o *options) { o.debug = true }
}

// WithVerbose включает вывод сырых informationReport до декодирования
func WithVerbose() Option {
	return func(o *options) { o.verbose = true }
}

// WithTSelectors задаёт транспортные селекторы COTP вместо 00 01,
// принятых большинством IED
func WithTSelectors(remote, local []byte) Option {
	return func(o *options) {
		o.remoteTSel = remote
		o.localTSel = local
	}
}

// Client - клиент отчётов одного IED. Не потокобезопасен: всем состоянием
// протокола владеет один цикл Run
type Client struct {
	address string
	options options
	log     zerolog.Logger

	conn      net.Conn
	cotpConn  *cotp.Connection
	mmsClient *mms.Client
	decoder   *report.Decoder

	invokeID uint32
	// datasetSize хранит число членов набора данных по RptID отчёта:
	// декодеру нужен размер inclusion до разбора заголовка
	datasetSize map[string]int
}

// New создаёт клиент отчётов для IED по адресу "host:port"
func New(address string, opts ...Option) *Client {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{
		address:     address,
		options:     options,
		log:         options.logger,
		decoder:     &report.Decoder{Labels: options.labels},
		invokeID:    invokeIDBase,
		datasetSize: make(map[string]int),
	}
}

// Run устанавливает соединение, активирует RCB и принимает отчёты до
// отмены контекста или фатальной ошибки транспорта. Ошибки активации
// отдельных RCB не фатальны: блок пропускается, остальные продолжают
// настраиваться
func (c *Client) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		c.close()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer c.close()
	// отмена контекста закрывает сокет, иначе цикл приёма заметил бы её
	// только по истечении idleTimeout
	stopClose := context.AfterFunc(ctx, c.close)
	defer stopClose()

	if err := c.initiate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrInitiate, err)
	}

	refs, err := c.resolveRCBs(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no report control blocks found in domain %q", c.options.domain)
	}

	enabled := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.enableRCB(ctx, ref); err != nil {
			var enableErr *rcb.EnableError
			if errors.As(err, &enableErr) {
				c.log.Warn().Err(enableErr).Stringer("rcb", ref).Msg("rcb skipped")
				continue
			}
			return err
		}
		enabled++
	}
	if enabled == 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("no report control block enabled")
	}
	c.log.Info().Int("enabled", enabled).Int("total", len(refs)).Msg("subscription complete")

	return c.receiveLoop(ctx)
}

func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// connect устанавливает TCP соединение и выполняет COTP CR/CC
func (c *Client) connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return err
	}
	c.conn = conn

	var cotpOpts []cotp.ConnectionOption
	if c.options.debug {
		cotpOpts = append(cotpOpts, cotp.WithLogger(logger.NewWithLogger(c.log, "cotp")))
	}
	c.cotpConn = cotp.NewConnection(conn, cotpOpts...)
	c.cotpConn.SetTpduSize(tpduSize)

	protocol := logger.Nop()
	if c.options.debug {
		protocol = logger.NewWithLogger(c.log, "mms")
	}
	c.mmsClient = mms.NewClient(c.cotpConn, protocol)

	params := &cotp.IsoConnectionParameters{
		RemoteTSelector: cotp.TSelector{Value: c.options.remoteTSel},
		LocalTSelector:  cotp.TSelector{Value: c.options.localTSel},
	}
	if err := c.cotpConn.SendConnectionRequestMessage(params); err != nil {
		return fmt.Errorf("failed to send COTP CR: %w", err)
	}

	if err := c.waitConnectConfirm(ctx); err != nil {
		return err
	}
	c.log.Info().Str("address", c.address).Msg("cotp connection established")
	return nil
}

// waitConnectConfirm ждёт COTP Connection Confirm. DR в ответ на CR
// означает отказ в соединении
func (c *Client) waitConnectConfirm(ctx context.Context) error {
	if err := c.conn.SetReadDeadline(time.Now().Add(connectTimeout)); err != nil {
		return err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state, err := c.cotpConn.ReadToTpktBuffer(ctx)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return fmt.Errorf("no connection confirm within %s", connectTimeout)
			}
			return fmt.Errorf("failed to read TPKT: %w", err)
		}
		if state != cotp.TpktPacketComplete {
			continue
		}

		indication, err := c.cotpConn.ParseIncomingMessage()
		if err != nil {
			return fmt.Errorf("failed to parse COTP message: %w", err)
		}
		switch indication {
		case cotp.IndicationConnect:
			return nil
		case cotp.IndicationDisconnect:
			return cotp.ErrRefused
		}
	}
}

// initiate устанавливает MMS ассоциацию. Запрос идёт в полной обёртке
// установления соединения: MMS initiate -> ACSE AARQ -> presentation
// CP-type -> session CONNECT SPDU
func (c *Client) initiate(ctx context.Context) error {
	mmsPdu := mms.NewInitiateRequest().Bytes()
	acsePdu := acse.BuildAARQ(mmsPdu)
	presentationPdu := presentation.BuildCPType(acsePdu)
	sessionPdu := session.BuildConnectSPDU(presentationPdu)

	if err := c.cotpConn.SendDataMessage(sessionPdu); err != nil {
		return fmt.Errorf("failed to send initiate request: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return err
	}
	data, err := c.mmsClient.Receive(ctx)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("no initiate response within %s", requestTimeout)
		}
		return err
	}

	pduType, err := mms.DecodePduType(data)
	if err != nil {
		return fmt.Errorf("failed to decode initiate response: %w", err)
	}
	switch pduType {
	case mms.PduInitiateResponse:
		response, err := mms.ParseInitiateResponse(data)
		if err != nil {
			return fmt.Errorf("failed to parse initiate response: %w", err)
		}
		c.log.Info().Stringer("negotiated", response).Msg("mms association established")
		return nil
	case mms.PduInitiateError:
		return errors.New("peer rejected initiate request")
	default:
		return fmt.Errorf("unexpected pdu in initiate response: %s", pduType)
	}
}

// nextInvokeID выдаёт следующий invokeID с переполнением по uint16
func (c *Client) nextInvokeID() uint32 {
	id := c.invokeID
	c.invokeID = (c.invokeID + 1) & 0xFFFF
	return id
}
