// Command injectgen 为带注入标记的类型生成静态注入器。
//
// 用法：
//
//	injectgen -dir ./... [-config injectgen.yaml] [-dry-run] [-v]
//
// 配置依次来自 YAML 文件和 INJECTGEN_* 环境变量，命令行参数优先。
// 报告了错误级诊断时退出码为 1，参数或配置错误时为 2。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/generator"
	"github.com/gocrud/inject/logging"
)

const envPrefix = "INJECTGEN_"

// logOptions 日志配置节
type logOptions struct {
	Level      string
	Provider   string
	Production bool
}

type options struct {
	generator.Config
	Log logOptions
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("injectgen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath = flags.String("config", "injectgen.yaml", "YAML 配置文件，不存在时忽略")
		dirs       = flags.String("dir", "", "逗号分隔的包目录，\"dir/...\" 递归处理")
		dryRun     = flags.Bool("dry-run", false, "只把生成结果打印到 stdout，不写文件")
		verbose    = flags.Bool("v", false, "输出调试日志")
	)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen: %v\n", err)
		return 2
	}
	if *dirs != "" {
		opts.Dirs = splitList(*dirs)
	}
	if *dryRun {
		opts.DryRun = true
	}
	if *verbose {
		opts.Log.Level = "debug"
	}

	logger, flush, err := newLogger(opts.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen: %v\n", err)
		return 2
	}
	defer flush()
	opts.Config.Logger = logger

	result, err := generator.Run(ctx, opts.Config)
	if err != nil {
		logger.Error("generation failed", logging.F("error", err))
		return 1
	}

	for _, d := range result.Diagnostics {
		fields := []logging.Field{logging.F("code", d.Code), logging.F("pos", d.Pos.String())}
		if d.Severity == generator.SeverityError {
			logger.Error(d.Message, append(fields, logging.F("type", d.Type), logging.F("member", d.Member))...)
		} else {
			logger.Warn(d.Message, append(fields, logging.F("type", d.Type))...)
		}
	}

	if opts.DryRun {
		for _, a := range result.Files {
			fmt.Fprintf(stdout, "// %s\n%s\n", a.Path, a.Content)
		}
	}

	logger.Info("done",
		logging.F("files", len(result.Files)),
		logging.F("removed", len(result.Removed)),
		logging.F("diagnostics", len(result.Diagnostics)))

	if result.HasErrors() {
		return 1
	}
	return 0
}

// loadOptions 读取 YAML 文件并叠加 INJECTGEN_* 环境变量
func loadOptions(path string) (options, error) {
	cfg, err := config.NewConfigurationBuilder().
		AddYamlFile(path, true).
		AddEnvironmentVariables(envPrefix).
		Build()
	if err != nil {
		return options{}, fmt.Errorf("load config: %w", err)
	}

	var opts options
	opts.Dirs = stringList(cfg, "dirs")
	opts.Exclude = stringList(cfg, "exclude")
	opts.FileSuffix = setting(cfg, "fileSuffix")
	if v := setting(cfg, "concurrency"); v != "" {
		if opts.Concurrency, err = cfg.GetInt(keyOf(cfg, "concurrency")); err != nil {
			return options{}, fmt.Errorf("concurrency: %w", err)
		}
	}
	if v := setting(cfg, "dryRun"); v != "" {
		if opts.DryRun, err = cfg.GetBool(keyOf(cfg, "dryRun")); err != nil {
			return options{}, fmt.Errorf("dryRun: %w", err)
		}
	}

	log := cfg.GetSection("log")
	opts.Log.Level = log.Get("level")
	opts.Log.Provider = log.Get("provider")
	if log.Get("production") != "" {
		if opts.Log.Production, err = log.GetBool("production"); err != nil {
			return options{}, fmt.Errorf("log.production: %w", err)
		}
	}
	return opts, nil
}

// keyOf 环境变量源的键是小写的，优先取小写键
func keyOf(cfg config.Configuration, key string) string {
	if lower := strings.ToLower(key); cfg.Get(lower) != "" {
		return lower
	}
	return key
}

func setting(cfg config.Configuration, key string) string {
	return cfg.Get(keyOf(cfg, key))
}

// stringList YAML 中是列表，环境变量中是逗号分隔的字符串
func stringList(cfg config.Configuration, key string) []string {
	if list, err := config.Load[[]string](cfg, key); err == nil {
		return list
	}
	return splitList(cfg.Get(key))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newLogger 按配置创建日志，console 写到 stderr
func newLogger(opts logOptions, stderr io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	builder := logging.NewLoggingBuilder().SetMinimumLevel(level)
	flush := func() {}
	switch strings.ToLower(opts.Provider) {
	case "", "console":
		builder.AddConsole(logging.ConsoleLoggerOptions{
			TimestampFormat: "15:04:05",
			Output:          stderr,
		})
	case "zap":
		provider, err := logging.NewZapProvider(opts.Production)
		if err != nil {
			return nil, nil, fmt.Errorf("zap: %w", err)
		}
		builder.AddProvider(provider)
		flush = func() { _ = provider.Sync() }
	default:
		return nil, nil, fmt.Errorf("unknown log provider %q", opts.Provider)
	}
	return builder.Build().CreateLogger("injectgen"), flush, nil
}
