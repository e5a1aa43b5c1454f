package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/nixxel-company-limited/rawprint/adapter" // registers the usb transport
	"github.com/nixxel-company-limited/rawprint/rawprint"
	"github.com/nixxel-company-limited/rawprint/server"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	v, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(v.GetBool("debug"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = run(v, logger)
	if err != nil {
		logger.Error("rawprint failed", zap.Error(err))
	}
	logger.Sync() //nolint:errcheck
	if err != nil {
		os.Exit(1)
	}
}

func run(v *viper.Viper, logger *zap.Logger) error {
	transport, err := rawprint.NewTransport(v.GetString("transport"))
	if err != nil {
		return fmt.Errorf("cannot create transport: %w", err)
	}

	if files := v.GetStringSlice("files"); len(files) > 0 {
		return printFiles(afero.NewOsFs(), transport, v, files, logger)
	}

	svr := server.New(transport, server.Config{
		Address:        v.GetString("listen"),
		Destination:    v.GetString("printer"),
		DocumentName:   v.GetString("document-name"),
		MaxJobSize:     v.GetInt64("max-job-size"),
		MaxConnections: v.GetInt("max-connections"),
		ReadTimeout:    v.GetDuration("read-timeout"),
	}, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		svr.Stop() //nolint:errcheck
	}()

	return svr.Start()
}

// loadConfig binds command-line flags into viper. Every flag can also be set
// through a RAWPRINT_ environment variable, e.g. RAWPRINT_DOCUMENT_NAME.
func loadConfig(args []string) (*viper.Viper, error) {
	fs := pflag.NewFlagSet("rawprint", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rawprint [flags] [file ...]\n\n")
		fmt.Fprintf(os.Stderr, "Sends each file as one raw job. Without files, serves raw jobs over TCP.\n\n")
		fs.PrintDefaults()
	}
	fs.StringP("printer", "p", "", "printer name, device path, or USB id (VID:PID, serial:<sn>, auto)")
	fs.StringP("transport", "t", rawprint.KindAuto, "transport: "+strings.Join(rawprint.Kinds(), ", "))
	fs.StringP("document-name", "d", rawprint.DefaultDocumentName, "spooler document name")
	fs.StringP("listen", "l", "localhost:9100", "address of the raw print server")
	fs.Int64("max-job-size", server.DefaultMaxJobSize, "largest job accepted by the server, in bytes")
	fs.Int("max-connections", server.DefaultMaxConnections, "clients the server serves at once")
	fs.Duration("read-timeout", server.DefaultReadTimeout, "drop a client silent for this long")
	fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("rawprint")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.Set("files", fs.Args())

	if v.GetString("printer") == "" {
		return nil, fmt.Errorf("no printer specified: set --printer or RAWPRINT_PRINTER")
	}
	return v, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// printFiles sends every file as its own raw job.
func printFiles(fs afero.Fs, t rawprint.Transport, v *viper.Viper, files []string, logger *zap.Logger) error {
	printer := v.GetString("printer")
	docName := v.GetString("document-name")

	for _, name := range files {
		payload, err := afero.ReadFile(fs, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		n, err := t.WriteRaw(printer, payload, docName)
		if err != nil {
			return fmt.Errorf("print %s: %w", name, err)
		}
		logger.Info("Printed file",
			zap.String("file", name),
			zap.String("printer", printer),
			zap.Int("written", n),
			zap.Int("bytes", len(payload)))
	}
	return nil
}
