// Command client is a terminal chat client for poking at a running
// server: it authenticates, opens the websocket, renders incoming
// events, and turns slash commands into outbound events.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"chatwire/contract"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token     string `envconfig:"CHAT_TOKEN" required:"true"`
	UserID    string `envconfig:"CHAT_USER_ID" required:"true"`
	// CHAT_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	endpoint, err := url.Parse(cfg.ServerURL)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}
	query := endpoint.Query()
	query.Set("token", cfg.Token)
	endpoint.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(endpoint.String(), nil)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer ws.Close()

	printHeader(cfg, fmt.Sprintf("Connected as %s", cfg.UserID))
	fmt.Println("Commands: /open <user> | /send <user> <text> | /sidebar | /seen <user> | /search <user> <terms> | /quit")

	go readEvents(cfg, ws)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := send(ws, cfg, line); err != nil {
			log.Fatalf("Send failed: %v", err)
		}
	}
}

func send(ws *websocket.Conn, cfg Config, line string) error {
	command, rest, _ := strings.Cut(line, " ")

	var event string
	var payload any
	switch command {
	case "/open":
		event = contract.EventMessagePage
		payload = contract.MessagePagePayload{UserID: rest}
	case "/send":
		target, text, ok := strings.Cut(rest, " ")
		if !ok {
			fmt.Println("usage: /send <user> <text>")
			return nil
		}
		event = contract.EventNewMessage
		payload = contract.NewMessagePayload{Sender: cfg.UserID, Receiver: target, Text: text}
	case "/sidebar":
		event = contract.EventSidebar
		payload = struct{}{}
	case "/seen":
		event = contract.EventSeen
		payload = contract.SeenPayload{UserID: rest}
	case "/search":
		target, terms, ok := strings.Cut(rest, " ")
		if !ok {
			fmt.Println("usage: /search <user> <terms>")
			return nil
		}
		event = contract.EventSearch
		payload = contract.SearchPayload{UserID: target, Query: terms}
	default:
		fmt.Printf("unknown command %q\n", command)
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ws.WriteJSON(contract.Envelope{Event: event, Data: data})
}

func readEvents(cfg Config, ws *websocket.Conn) {
	for {
		var envelope contract.Envelope
		if err := ws.ReadJSON(&envelope); err != nil {
			log.Fatalf("Connection lost: %v", err)
		}
		render(cfg, envelope)
	}
}

func render(cfg Config, envelope contract.Envelope) {
	switch envelope.Event {
	case contract.EventOnlineUsers:
		var online []string
		_ = json.Unmarshal(envelope.Data, &online)
		printHeader(cfg, fmt.Sprintf("Online: %s", strings.Join(online, ", ")))

	case contract.EventMessageUser:
		var profile contract.ProfilePayload
		_ = json.Unmarshal(envelope.Data, &profile)
		state := "offline"
		if profile.Online {
			state = "online"
		}
		printHeader(cfg, fmt.Sprintf("Talking to %s (%s)", profile.Name, state))

	case contract.EventMessages, contract.EventSearchResult:
		var messages []contract.MessagePayload
		_ = json.Unmarshal(envelope.Data, &messages)
		for _, msg := range messages {
			printMessage(cfg, msg)
		}

	case contract.EventConversation:
		var summaries []contract.ThreadSummaryPayload
		_ = json.Unmarshal(envelope.Data, &summaries)
		printSidebar(summaries)

	case contract.EventError:
		var errPayload contract.ErrorPayload
		_ = json.Unmarshal(envelope.Data, &errPayload)
		log.Fatalf("Server error: %s", errPayload.Message)

	default:
		fmt.Printf("[%s] %s\n", envelope.Event, string(envelope.Data))
	}
}

func printHeader(cfg Config, text string) {
	header := fmt.Sprintf("  ====== %s ======", text)
	if cfg.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
}

func printMessage(cfg Config, msg contract.MessagePayload) {
	body := msg.Text
	if body == "" && msg.ImageURL != "" {
		body = "[image] " + msg.ImageURL
	}
	if body == "" && msg.VideoURL != "" {
		body = "[video] " + msg.VideoURL
	}
	line := fmt.Sprintf("%s %s: %s", msg.CreatedAt.Local().Format("15:04:05"), msg.Sender, body)
	if cfg.Colours && msg.Sender == cfg.UserID {
		line = color.New(color.FgCyan).Render(line)
	}
	fmt.Println(line)
}

func printSidebar(summaries []contract.ThreadSummaryPayload) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Peer", "Online", "Unseen", "Last Message", "Updated"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, summary := range summaries {
		online := ""
		if summary.Peer.Online {
			online = "yes"
		}
		last := ""
		if summary.LastMessage != nil {
			last = summary.LastMessage.Text
			if len(last) > 40 {
				last = last[:40] + "..."
			}
		}
		table.Append([]string{
			summary.Peer.Name,
			online,
			fmt.Sprintf("%d", summary.Unseen),
			last,
			summary.UpdatedAt.Local().Format("15:04:05"),
		})
	}
	table.Render()
}
