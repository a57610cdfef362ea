package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"tpahub/internal/protocol"
)

// Interactive client: type "/tpa bob", "/tpaccept", "/tpdeny", "/say hi",
// "/who"; server events print as they arrive.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("connection closed: %v", err)
				os.Exit(0)
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var w protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &w); err != nil {
					continue
				}
				logger.Printf("WELCOME player_id=%s name=%s tick_rate=%d expiry=%d",
					w.PlayerID, w.PlayerName, w.HubParams.TickRateHz, w.HubParams.RequestExpiryTicks)
			case protocol.TypeEventBatch:
				var batch protocol.EventBatchMsg
				if err := json.Unmarshal(msg, &batch); err != nil {
					continue
				}
				for _, e := range batch.Events {
					logger.Printf("t=%v %v %v", e["t"], e["type"], eventText(e))
				}
			}
		}
	}()

	cmdSeq := 0
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmdSeq++
		cmd := protocol.CmdMsg{
			Type:            protocol.TypeCmd,
			ProtocolVersion: protocol.Version,
			ID:              fmt.Sprintf("C%d", cmdSeq),
			Name:            fields[0],
			Args:            fields[1:],
		}
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send CMD: %v", err)
		}
	}
}

func eventText(e protocol.Event) string {
	if text, ok := e["text"].(string); ok {
		return text
	}
	b, _ := json.Marshal(e)
	return string(b)
}
