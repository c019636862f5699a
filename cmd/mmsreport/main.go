// Команда mmsreport подписывается на отчёты IED по MMS (IEC 61850):
// активирует блоки управления отчётами, печатает входящие отчёты и
// опционально отправляет числовые значения в VictoriaMetrics
package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/slonegd/mmsreport"
	"github.com/slonegd/mmsreport/rcb"
	"github.com/slonegd/mmsreport/report"
	"github.com/slonegd/mmsreport/scl"
	"github.com/slonegd/mmsreport/sink"
)

var (
	configPath  string
	domain      string
	rcbRefs     []string
	sclPath     string
	debugFlag   bool
	verboseFlag bool
	sinkURL     string
	sinkBatchMs int
	sinkNoBatch bool
	intgPdMs    uint64
	keepAlive   bool
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:   "mmsreport <host> [port]",
	Short: "mmsreport подписывается на отчёты IED по MMS (IEC 61850)",
	Long: `mmsreport устанавливает MMS ассоциацию с IED, активирует блоки
управления отчётами (RCB) и печатает входящие отчёты. Без --rcb домен
просматривается через getNameList и активируются все найденные блоки
RP/BR. Числовые значения отчётов можно отправлять в VictoriaMetrics
(--sink-url).`,
	Example: `  mmsreport 10.0.1.44
  mmsreport 10.0.1.44 3102 --rcb 'LLN0$BR$CB_LDPHAS1_DQPO03' --scl substation.icd
  mmsreport 10.0.1.44 --sink-url http://victoria:8428 --keep-alive
  mmsreport --config mmsreport.toml --debug`,
	Args: cobra.MaximumNArgs(2),
	RunE: run,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "TOML файл конфигурации, флаги сильнее значений из файла")
	flags.StringVar(&domain, "domain", defaultDomain, "MMS домен (логическое устройство) с блоками управления отчётами")
	flags.StringSliceVar(&rcbRefs, "rcb", nil, "item-id блока RCB, можно повторять; без флага активируются все блоки домена")
	flags.StringVar(&sclPath, "scl", "", "SCL/ICD файл с именами членов наборов данных")
	flags.BoolVar(&debugFlag, "debug", false, "печатать hex всех отправленных и принятых PDU")
	flags.BoolVar(&verboseFlag, "verbose", false, "печатать сырые PDU отчётов и ссылки на данные членов")
	flags.StringVar(&sinkURL, "sink-url", "", "базовый URL VictoriaMetrics, включает отправку метрик")
	flags.IntVar(&sinkBatchMs, "sink-batch-ms", defaultSinkBatchMs, "интервал сброса пакета метрик, мс (0 - без буферизации)")
	flags.BoolVar(&sinkNoBatch, "sink-no-batch", false, "отдельный HTTP POST на каждый отчёт")
	flags.Uint64Var(&intgPdMs, "intg-pd", rcb.DefaultIntgPdMs, "период integrity отчётов, мс")
	flags.BoolVar(&keepAlive, "keep-alive", false, "проверять ассоциацию запросом identify при простое")
	flags.StringVar(&logFile, "log-file", "", "дублировать лог в файл с ротацией по размеру")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode: 2 - не удалось установить соединение, 3 - IED отверг MMS
// ассоциацию, 1 - всё остальное (аргументы, конфигурация, транспорт)
func exitCode(err error) int {
	switch {
	case errors.Is(err, mmsreport.ErrConnect):
		return 2
	case errors.Is(err, mmsreport.ErrInitiate):
		return 3
	default:
		return 1
	}
}

func run(cmd *cobra.Command, args []string) error {
	// аргументы уже разобраны, дальше ошибки не про использование
	cmd.SilenceUsage = true

	cfg, err := buildSettings(cmd.Flags(), args)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	dumpFlags(logger, cmd.Flags())

	opts := []mmsreport.Option{
		mmsreport.WithDomain(cfg.Domain),
		mmsreport.WithIntgPd(cfg.IntgPdMs),
		mmsreport.WithLogger(logger),
		mmsreport.WithHandler(printReport(cmd.OutOrStdout(), cfg.Verbose)),
	}
	if len(cfg.RCBs) > 0 {
		opts = append(opts, mmsreport.WithRCBs(cfg.RCBs...))
	}
	if cfg.SCLPath != "" {
		var labels report.Labels
		labels, err = scl.Parse(cfg.SCLPath)
		if err != nil {
			return err
		}
		logger.Info().Int("datasets", len(labels)).Str("file", cfg.SCLPath).Msg("scl labels loaded")
		opts = append(opts, mmsreport.WithLabels(labels))
	}
	if cfg.Debug {
		opts = append(opts, mmsreport.WithDebug())
	}
	if cfg.Verbose {
		opts = append(opts, mmsreport.WithVerbose())
	}
	if cfg.KeepAlive {
		opts = append(opts, mmsreport.WithKeepAlive())
	}
	if cfg.SinkURL != "" {
		sinkOpts := []sink.Option{
			sink.WithLogger(logger),
			sink.WithInterval(time.Duration(cfg.SinkBatchMs) * time.Millisecond),
		}
		if cfg.SinkNoBatch {
			sinkOpts = append(sinkOpts, sink.WithNoBatch())
		}
		metrics := sink.New(cfg.SinkURL, sinkOpts...)
		// Close досылает буфер, поэтому строго перед выходом
		defer metrics.Close()
		opts = append(opts, mmsreport.WithSink(metrics))
	}

	client := mmsreport.New(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		// после первого сигнала поведение по умолчанию восстановлено:
		// повторный Ctrl-C завершает процесс принудительно
		stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}

// setupLogger строит корневой логгер: консольный формат для терминала,
// JSON для перенаправленного stderr, опционально файл с ротацией.
// Логгер ставится и глобальным, чтобы его подхватили отладочные логгеры
// протокольных уровней
func setupLogger(cfg settings) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug || cfg.Verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stderr
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    25, // МБ
			MaxAge:     7,  // дней
			MaxBackups: 5,
		}
		out = zerolog.MultiLevelWriter(out, rotator)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	return logger
}

// dumpFlags пишет в лог явно заданные флаги
func dumpFlags(logger zerolog.Logger, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		logger.Debug().Str("flag", f.Name).Str("value", f.Value.String()).Msg("flag set")
	})
}
