package cmd

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/circa10a/countdown/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Constants for Viper keys and Flag names
const (
	autoTLSKey           = "auto-tls"
	contactEmailKey      = "contact-email"
	demoModeKey          = "demo-mode"
	demoResetIntervalKey = "demo-reset-interval"
	domainsKey           = "domains"
	eventHistoryKey      = "event-history"
	logFormatKey         = "log-format"
	logLevelKey          = "log-level"
	metricsKey           = "metrics"
	notifiersKey         = "notifiers"
	notifyMessageKey     = "notify-message"
	portKey              = "port"
	storageBackendKey    = "storage-backend"
	storageDirKey        = "storage-dir"
	tickIntervalKey      = "tick-interval"
	tlsCertificateKey    = "tls-certificate"
	tlsKeyKey            = "tls-key"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: fmt.Sprintf("Start the %s server", project),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Build server configuration using the constants
		cfg := &server.Config{
			AutoTLS:           viper.GetBool(autoTLSKey),
			ContactEmail:      viper.GetString(contactEmailKey),
			DemoMode:          viper.GetBool(demoModeKey),
			DemoResetInterval: viper.GetDuration(demoResetIntervalKey),
			Domains:           viper.GetStringSlice(domainsKey),
			EventHistory:      viper.GetInt(eventHistoryKey),
			LogFormat:         viper.GetString(logFormatKey),
			LogLevel:          viper.GetString(logLevelKey),
			Metrics:           viper.GetBool(metricsKey),
			Notifiers:         viper.GetStringSlice(notifiersKey),
			NotifyMessage:     viper.GetString(notifyMessageKey),
			Port:              viper.GetInt(portKey),
			StorageBackend:    viper.GetString(storageBackendKey),
			StorageDir:        viper.GetString(storageDirKey),
			TickInterval:      viper.GetDuration(tickIntervalKey),
			TLSCert:           viper.GetString(tlsCertificateKey),
			TLSKey:            viper.GetString(tlsKeyKey),
			Validation:        true,
		}

		server, err := server.New(cfg)
		if err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		go func() {
			err := server.Start()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("server error: %v", err)
			}
		}()

		<-stop
		server.Stop()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverFlags := []flagDef{
		{Name: autoTLSKey, Shorthand: "a", Type: "bool", Default: false, Usage: "Enable automatic TLS via Let's Encrypt. Requires port 80/443 open to the internet for domain validation.", ViperKey: autoTLSKey},
		{Name: contactEmailKey, Shorthand: "", Type: "string", Default: "user@countdown.local", Usage: "Email used for TLS cert registration (not required).", ViperKey: contactEmailKey},
		{Name: demoModeKey, Shorthand: "", Type: "bool", Default: false, Usage: "Enable demo mode which creates sample timers on startup and resets them periodically.", ViperKey: demoModeKey},
		{Name: demoResetIntervalKey, Shorthand: "", Type: "duration", Default: 1 * time.Hour, Usage: "How often to reset the sample timers when in demo mode.", ViperKey: demoResetIntervalKey},
		{Name: domainsKey, Shorthand: "d", Type: "stringArray", Default: []string{}, Usage: "Domains to issue certificate for. Must be used with --auto-tls.", ViperKey: domainsKey},
		{Name: eventHistoryKey, Shorthand: "", Type: "int", Default: 100, Usage: "How many recent expiry events to keep in memory.", ViperKey: eventHistoryKey},
		{Name: logFormatKey, Shorthand: "f", Type: "string", Default: "text", Usage: "Server logging format. Supported values are 'text' and 'json'.", ViperKey: logFormatKey},
		{Name: logLevelKey, Shorthand: "l", Type: "string", Default: "info", Usage: "Server logging level.", ViperKey: logLevelKey},
		{Name: metricsKey, Shorthand: "m", Type: "bool", Default: false, Usage: "Enable Prometheus metrics instrumentation.", ViperKey: metricsKey},
		{Name: notifiersKey, Shorthand: "n", Type: "stringArray", Default: []string{}, Usage: "Shoutrrr URLs alerted when a timer finishes, e.g. discord://token@id.", ViperKey: notifiersKey},
		{Name: notifyMessageKey, Shorthand: "", Type: "string", Default: "Timer '%s' finished!", Usage: "Alert message. %s is replaced by the timer name.", ViperKey: notifyMessageKey},
		{Name: portKey, Shorthand: "p", Type: "int", Default: 8080, Usage: "Port to listen on. Cannot be used in conjunction with --auto-tls since that will require listening on 80 and 443.", ViperKey: portKey},
		{Name: storageBackendKey, Shorthand: "b", Type: "string", Default: "file", Usage: "Timer storage backend. Supported values are 'file' and 'sqlite'.", ViperKey: storageBackendKey},
		{Name: storageDirKey, Shorthand: "s", Type: "string", Default: "./data", Usage: "Storage directory for timers", ViperKey: storageDirKey},
		{Name: tickIntervalKey, Shorthand: "t", Type: "duration", Default: 1 * time.Second, Usage: "Wall-clock time between ticks. Each tick takes one second off every active timer.", ViperKey: tickIntervalKey},
		{Name: tlsCertificateKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS certificate. Cannot be used with --auto-tls.", ViperKey: tlsCertificateKey},
		{Name: tlsKeyKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS key. Cannot be used with --auto-tls.", ViperKey: tlsKeyKey},
	}

	registerFlagTypes(serverCmd, serverFlags)

	viper.SetEnvPrefix(strings.ToUpper(envVarPrefix))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, d := range serverFlags {
		_ = viper.BindPFlag(d.ViperKey, serverCmd.Flags().Lookup(d.Name))
	}

	serverCmd.Flags().VisitAll(func(f *pflag.Flag) {
		env := strings.ToUpper(envVarPrefix) + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if !strings.Contains(f.Usage, "env:") {
			f.Usage = fmt.Sprintf("%s (env: %s)", f.Usage, env)
		}
	})
}
