package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wsconnect/internal/config"
	"wsconnect/pkg/wsconnect"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	insecure     bool
	maxFrameSize int
	extraHeaders []string
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "wsconnect",
	Short: "WebSocket client connector",
	Long: `Interactive WebSocket client. Performs the HTTP/1.1 upgrade handshake
against a ws:// or wss:// endpoint and bridges stdin/stdout onto the
resulting connection.`,
}

var connectCmd = &cobra.Command{
	Use:   "connect [url]",
	Short: "Connect to an endpoint and exchange text frames",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := resolveEndpoint(args)
		if err != nil {
			return err
		}

		client, err := wsconnect.NewClient(clientConfig(ep))
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Shutdown(); err != nil && err != wsconnect.ErrAlreadyShutdown {
				log.Printf("shutdown: %v", err)
			}
		}()

		if metricsAddr != "" {
			wsconnect.EnableMetrics()
			go func() {
				if err := wsconnect.StartMetricsServer(cmd.Context(), metricsAddr); err != nil {
					log.Printf("metrics: %v", err)
				}
			}()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		onUpgrade := func(s *wsconnect.Socket) {
			log.Printf("connected to %s", ep.URL())
			s.OnText(func(text string) { fmt.Println(text) })
			s.OnBinary(func(data []byte) { log.Printf("binary frame, %d bytes", len(data)) })
			s.OnError(func(err error) { log.Printf("socket error: %v", err) })
			s.OnCloseCode(func(code wsconnect.CloseCode) { log.Printf("peer closed, code %d", code) })

			go func() {
				<-sigCh
				_ = s.CloseWithCode(wsconnect.CloseNormalClosure)
			}()
			go func() {
				in := bufio.NewScanner(os.Stdin)
				for in.Scan() {
					if err := s.SendText(in.Text()); err != nil {
						log.Printf("send: %v", err)
						return
					}
				}
				_ = s.CloseWithCode(wsconnect.CloseNormalClosure)
			}()
		}

		return client.Connect(cmd.Context(), ep.Host, ep.Port, ep.Path, endpointHeaders(ep), onUpgrade)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Measure handshake latency against an endpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := resolveEndpoint(args)
		if err != nil {
			return err
		}

		client, err := wsconnect.NewClient(clientConfig(ep))
		if err != nil {
			return err
		}
		defer client.Shutdown()

		start := time.Now()
		err = client.Connect(cmd.Context(), ep.Host, ep.Port, ep.Path, endpointHeaders(ep), func(s *wsconnect.Socket) {
			fmt.Printf("handshake ok in %v\n", time.Since(start))
			_ = s.CloseWithCode(wsconnect.CloseNormalClosure)
		})
		return err
	},
}

func resolveEndpoint(args []string) (*config.Endpoint, error) {
	if len(args) == 1 {
		return config.ParseURL(args[0])
	}
	if configPath == "" {
		return nil, fmt.Errorf("either a URL argument or --config is required")
	}
	return config.LoadEndpoint(configPath)
}

func clientConfig(ep *config.Endpoint) wsconnect.Config {
	cfg := wsconnect.DefaultConfig()
	if maxFrameSize > 0 {
		cfg.MaxFrameSize = maxFrameSize
	}
	if ep.MaxFrameSize > 0 {
		cfg.MaxFrameSize = ep.MaxFrameSize
	}
	if ep.UseTLS {
		cfg.TLS = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ServerName:         ep.ServerName,
			InsecureSkipVerify: insecure || ep.Insecure,
		}
	}
	return cfg
}

func endpointHeaders(ep *config.Endpoint) http.Header {
	h := make(http.Header)
	for k, v := range ep.Headers {
		h.Set(k, v)
	}
	for _, kv := range extraHeaders {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			h.Set(parts[0], parts[1])
		}
	}
	return h
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "endpoint config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().IntVar(&maxFrameSize, "max-frame-size", 0, "inbound frame size limit in bytes")
	rootCmd.PersistentFlags().StringArrayVar(&extraHeaders, "header", nil, "extra handshake header, key=value")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "serve /metrics on this address")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(probeCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
