// SPDX-License-Identifier: ice License 1.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	gobwasws "github.com/gobwas/ws"
	"github.com/spf13/cobra"

	"github.com/ice-blockchain/wsconnect/cfg"
	"github.com/ice-blockchain/wsconnect/client/ws"
	"github.com/ice-blockchain/wsconnect/log"
)

type printer struct {
	stopped chan error
}

var (
	target       string
	configPath   string
	method       string
	httpVersion  string
	origin       string
	logLevel     string
	protocols    []string
	headers      []string
	cookies      []string
	offerDeflate bool
	debug        bool
	wsconnect    = &cobra.Command{
		Use:   "wsconnect",
		Short: "opens a websocket session, sends stdin lines and prints what the server sends back",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if configPath != "" {
				cfg.MustInit(configPath)
			} else {
				cfg.MustInit()
			}
			conf := cfg.MustGet[ws.Config]()
			applyFlags(conf)
			cfg.Watch(func() {
				if reloaded := cfg.MustGet[ws.Config](); reloaded.LogLevel != "" && logLevel == "" {
					if err := log.SetLevel(reloaded.LogLevel); err != nil {
						log.Error(errors.Wrap(err, "failed to apply reloaded log level"))
					}
				}
			})
			generic, err := upgradeRequest()
			if err != nil {
				return err
			}

			return run(ctx, conf, generic)
		},
	}
	initFlags = func() {
		wsconnect.Flags().StringVar(&target, "url", "", "ws://, wss://, http:// or https:// url to connect to")
		wsconnect.Flags().StringVar(&configPath, "config", "", "path to the yaml configuration file")
		wsconnect.Flags().StringVar(&method, "method", "", "request method, GET by default")
		wsconnect.Flags().StringVar(&httpVersion, "http-version", "", "HTTP/1.1 (default) or HTTP/3")
		wsconnect.Flags().StringVar(&origin, "origin", "", "origin header, overrides the configured one")
		wsconnect.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
		wsconnect.Flags().StringSliceVar(&protocols, "protocol", nil, "sub-protocol to offer, repeatable")
		wsconnect.Flags().StringArrayVar(&headers, "header", nil, "`Name: value` header to send, repeatable")
		wsconnect.Flags().StringArrayVar(&cookies, "cookie", nil, "`name=value` cookie to send, repeatable")
		wsconnect.Flags().BoolVar(&offerDeflate, "deflate", false, "offer permessage-deflate")
		wsconnect.Flags().BoolVar(&debug, "debug", false, "collect and dump handshake statistics")
		if err := wsconnect.MarkFlagRequired("url"); err != nil {
			log.Panic(err)
		}
	}
)

func init() {
	initFlags()
}

func main() {
	defer func() { _ = log.Sync() }() //nolint:errcheck // Nothing to do on exit.
	if err := wsconnect.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlags(conf *ws.Config) {
	if origin != "" {
		conf.Origin = origin
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if offerDeflate {
		conf.OfferExtensions = true
	}
	if debug {
		conf.Debug = true
	}
}

func upgradeRequest() (*ws.UpgradeRequest, error) {
	generic := &ws.UpgradeRequest{
		Method:       method,
		HTTPVersion:  httpVersion,
		SubProtocols: protocols,
		Headers:      make(http.Header, len(headers)),
	}
	for _, header := range headers {
		name, value, found := strings.Cut(header, ":")
		if !found {
			return nil, errors.Errorf("header `%v` is not in `Name: value` form", header)
		}
		generic.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, cookie := range cookies {
		name, value, found := strings.Cut(cookie, "=")
		if !found {
			return nil, errors.Errorf("cookie `%v` is not in `name=value` form", cookie)
		}
		generic.Cookies = append(generic.Cookies, &http.Cookie{Name: name, Value: value})
	}
	if offerDeflate {
		generic.Extensions = []ws.ExtensionConfig{{Name: "permessage-deflate", Parameters: []ws.ExtensionParameter{
			{Key: "server_no_context_takeover"},
			{Key: "client_no_context_takeover"},
		}}}
	}

	return generic, nil
}

func run(ctx context.Context, conf *ws.Config, generic *ws.UpgradeRequest) error {
	out := &printer{stopped: make(chan error, 1)}
	client := ws.New(conf, ws.SessionBuilderFunc(func(sctx *ws.SessionContext) (ws.Listener, error) {
		log.Info("upgraded",
			log.String("status", sctx.Response.Status()),
			log.String("protocol", sctx.Response.AcceptedSubProtocol()),
			log.String("remote", sctx.Endpoint.RemoteAddr.String()))

		return out, nil
	}))
	defer func() {
		if err := client.Close(); err != nil {
			log.Error(err)
		}
	}()
	session, err := client.Dial(ctx, generic, target)
	if err != nil {
		var rejected *ws.HandshakeRejectedError
		if errors.As(err, &rejected) {
			log.Error(err, log.Int("status", rejected.StatusCode), log.Any("headers", rejected.Header))
		}

		return errors.Wrapf(err, "failed to connect to %v", target)
	}
	lines := make(chan string)
	go scan(lines)
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(session.CloseWithStatus(gobwasws.StatusGoingAway, "interrupted"), "failed to close session")
		case err = <-out.stopped:
			return err
		case line, ok := <-lines:
			if !ok {
				return errors.Wrap(session.Close(), "failed to close session")
			}
			if err = session.WriteText(line); err != nil {
				return errors.Wrap(err, "failed to send")
			}
		}
	}
}

func scan(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func (*printer) OnMessage(_ context.Context, _ *ws.Session, opCode gobwasws.OpCode, data []byte) {
	if opCode == gobwasws.OpText {
		fmt.Println(string(data)) //nolint:forbidigo // Output of the tool.
	} else {
		fmt.Printf("binary %x\n", data) //nolint:forbidigo // Output of the tool.
	}
}

func (p *printer) OnClose(_ *ws.Session, err error) {
	if err != nil {
		log.Warn("session closed", log.String("error", err.Error()))
	}
	p.stopped <- err
}
