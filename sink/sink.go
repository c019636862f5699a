// Package sink отправляет числовые значения отчётов в VictoriaMetrics
// в формате Prometheus с метками времени (POST /api/v1/import/prometheus).
// Строки буферизуются и уходят пачками: одна HTTP-запись на интервал
// либо сразу при накоплении maxLines строк
package sink

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const (
	// DefaultInterval интервал отправки пачки по умолчанию
	DefaultInterval = 200 * time.Millisecond
	// DefaultMaxLines порог размера пачки: при накоплении строк
	// отправка не ждёт тикера
	DefaultMaxLines = 500

	importPath         = "/api/v1/import/prometheus"
	contentType        = "text/plain; charset=utf-8"
	defaultPostTimeout = 15 * time.Second
)

// options содержит опции для создания Sink
type options struct {
	interval time.Duration
	maxLines int
	noBatch  bool
	timeout  time.Duration
	logger   zerolog.Logger
}

// defaultOptions возвращает опции по умолчанию
func defaultOptions() options {
	return options{
		interval: DefaultInterval,
		maxLines: DefaultMaxLines,
		timeout:  defaultPostTimeout,
		logger:   zlog.Logger,
	}
}

// Option представляет опцию для настройки Sink
type Option func(*options)

// WithInterval устанавливает интервал отправки пачек.
// Неположительный интервал отключает буферизацию
func WithInterval(interval time.Duration) Option {
	return func(opts *options) {
		opts.interval = interval
	}
}

// WithMaxLines устанавливает порог размера пачки
func WithMaxLines(maxLines int) Option {
	return func(opts *options) {
		opts.maxLines = maxLines
	}
}

// WithNoBatch отключает буферизацию: каждый вызов add отправляется
// отдельным HTTP-запросом
func WithNoBatch() Option {
	return func(opts *options) {
		opts.noBatch = true
	}
}

// WithTimeout устанавливает таймаут HTTP-запроса
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

// WithLogger устанавливает логгер
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Sink буферизует строки формата Prometheus и отправляет их в
// VictoriaMetrics. Потокобезопасен: буфер под мьютексом, фоновая
// горутина сбрасывает его по тикеру
type Sink struct {
	importURL string
	maxLines  int
	noBatch   bool
	client    *http.Client
	logger    zerolog.Logger

	mu     sync.Mutex
	buffer []string

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New создаёт Sink для заданного базового URL VictoriaMetrics
// (например, http://localhost:8428) и запускает фоновую отправку
func New(baseURL string, opts ...Option) *Sink {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.interval <= 0 {
		options.noBatch = true
	}

	s := &Sink{
		importURL: strings.TrimRight(baseURL, "/") + importPath,
		maxLines:  options.maxLines,
		noBatch:   options.noBatch,
		client:    &http.Client{Timeout: options.timeout},
		logger:    options.logger,
		done:      make(chan struct{}),
	}

	if !s.noBatch {
		s.wg.Add(1)
		go s.run(options.interval)
	}

	return s
}

// Push ставит в очередь одну метрику. Метки кодируются в
// отсортированном порядке имён
func (s *Sink) Push(metric string, labels map[string]string, value float64, timestampMs int64) {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]label, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, label{name: name, value: labels[name]})
	}

	s.add([]string{formatLine(metric, pairs, value, timestampMs)})
}

// Flush принудительно отправляет накопленный буфер
func (s *Sink) Flush() {
	s.mu.Lock()
	toSend := s.takeBuffer()
	s.mu.Unlock()

	if len(toSend) > 0 {
		s.post(toSend)
	}
}

// Close останавливает фоновую отправку и сбрасывает остаток буфера
func (s *Sink) Close() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	s.Flush()
	return nil
}

// add добавляет строки в буфер. Переполнение порога и режим без
// буферизации отправляют немедленно
func (s *Sink) add(lines []string) {
	if len(lines) == 0 {
		return
	}

	if s.noBatch {
		s.post(lines)
		return
	}

	var toSend []string
	s.mu.Lock()
	s.buffer = append(s.buffer, lines...)
	if len(s.buffer) >= s.maxLines {
		toSend = s.takeBuffer()
	}
	s.mu.Unlock()

	if len(toSend) > 0 {
		s.post(toSend)
	}
}

// takeBuffer извлекает буфер целиком. Вызывается с захваченным mu
func (s *Sink) takeBuffer() []string {
	if len(s.buffer) == 0 {
		return nil
	}
	toSend := s.buffer
	s.buffer = nil
	return toSend
}

// run сбрасывает буфер раз в interval до остановки
func (s *Sink) run(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.done:
			return
		}
	}
}

// post отправляет строки одним HTTP-запросом. Ошибки отправки не
// фатальны: значения теряются, подписка продолжает жить
func (s *Sink) post(lines []string) {
	body := strings.Join(lines, "\n")

	resp, err := s.client.Post(s.importURL, contentType, strings.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Msg("victoriametrics push failed")
		return
	}
	defer resp.Body.Close()
	// Дочитываем тело, чтобы переиспользовать соединение
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		s.logger.Error().Int("status", resp.StatusCode).Msg("victoriametrics push rejected")
		return
	}

	s.logger.Debug().Int("lines", len(lines)).Int("status", resp.StatusCode).Msg("pushed to victoriametrics")
}

// label пара имя/значение метки. Порядок меток в строке сохраняется
// как передан
type label struct {
	name, value string
}

// formatLine собирает строку экспозиционного формата Prometheus:
// metric{name="value",...} value timestampMs
func formatLine(metric string, labels []label, value float64, timestampMs int64) string {
	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte('{')
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.name)
		b.WriteString(`="`)
		b.WriteString(escapeLabel(l.value))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(timestampMs, 10))
	return b.String()
}

// escapeLabel экранирует спецсимволы в значении метки Prometheus
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
