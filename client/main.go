// Minimal library-usage example: connect, send one message, print whatever
// comes back until the peer closes or SIGINT arrives.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wsconnect/internal/config"
	"wsconnect/pkg/wsconnect"
)

func main() {
	var rawurl string
	var message string
	flag.StringVar(&rawurl, "url", "ws://127.0.0.1:8080/echo", "endpoint URL")
	flag.StringVar(&message, "m", "hello", "message to send after the upgrade")
	flag.Parse()

	ep, err := config.ParseURL(rawurl)
	if err != nil {
		log.Fatalf("url: %v", err)
	}

	client, err := wsconnect.NewClient(wsconnect.DefaultConfig())
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = client.Connect(ctx, ep.Host, ep.Port, ep.Path, nil, func(s *wsconnect.Socket) {
		s.OnText(func(text string) { log.Printf("recv: %s", text) })
		s.OnError(func(err error) { log.Printf("error: %v", err) })
		s.OnCloseCode(func(code wsconnect.CloseCode) { log.Printf("closed by peer, code %d", code) })

		if err := s.SendText(message); err != nil {
			log.Printf("send: %v", err)
		}
		go func() {
			<-sigCh
			_ = s.CloseWithCode(wsconnect.CloseNormalClosure)
		}()
	})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	if err := client.Shutdown(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
