package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

type event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

func dialAndAnnounce(server, userID string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL.String(), err)
	}

	announce := event{Name: "set_user_id"}
	announce.Data, _ = json.Marshal(userID)
	if err := conn.WriteJSON(announce); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announce user id: %w", err)
	}
	return conn, nil
}

func printEvents(conn *websocket.Conn) error {
	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		log.Printf("<- %s %s", ev.Name, string(ev.Data))
	}
}

func main() {
	app := &cli.App{
		Name:  "chatctl",
		Usage: "chat-ws-api CLI for local dev tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:5000", Usage: "server base URL"},
		},
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "Check server health",
				Action: func(c *cli.Context) error {
					resp, err := http.Get(c.String("server") + "/health")
					if err != nil {
						return err
					}
					defer resp.Body.Close()
					body, _ := io.ReadAll(resp.Body)
					log.Printf("%s: %s", resp.Status, string(body))
					return nil
				},
			},
			{
				Name:  "listen",
				Usage: "Connect, announce a user id and print every event",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "user id to announce"},
				},
				Action: func(c *cli.Context) error {
					conn, err := dialAndAnnounce(c.String("server"), c.String("user"))
					if err != nil {
						return err
					}
					defer conn.Close()

					interrupt := make(chan os.Signal, 1)
					signal.Notify(interrupt, os.Interrupt)
					done := make(chan error, 1)
					go func() { done <- printEvents(conn) }()

					select {
					case err := <-done:
						return err
					case <-interrupt:
						_ = conn.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
						return nil
					}
				},
			},
			{
				Name:  "send",
				Usage: "Send one public message and wait for the echo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "sender user id"},
					&cli.StringFlag{Name: "login", Required: true, Usage: "sender display name"},
					&cli.StringFlag{Name: "text", Required: true, Usage: "message text"},
				},
				Action: func(c *cli.Context) error {
					conn, err := dialAndAnnounce(c.String("server"), c.String("user"))
					if err != nil {
						return err
					}
					defer conn.Close()

					msg := event{Name: "save_public_message"}
					msg.Data, _ = json.Marshal(map[string]string{
						"userId": c.String("user"),
						"login":  c.String("login"),
						"text":   c.String("text"),
					})
					if err := conn.WriteJSON(msg); err != nil {
						return fmt.Errorf("send message: %w", err)
					}

					deadline := time.Now().Add(5 * time.Second)
					_ = conn.SetReadDeadline(deadline)
					for {
						var ev event
						if err := conn.ReadJSON(&ev); err != nil {
							return fmt.Errorf("wait for echo: %w", err)
						}
						if ev.Name == "get_public_message" {
							log.Printf("delivered: %s", string(ev.Data))
							return nil
						}
					}
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
