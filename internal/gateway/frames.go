package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Gateway opcodes used by the client.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpPresenceUpdate = 3
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatACK   = 11
)

// Properties is the client metadata sent with identify.
type Properties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// DefaultProperties mirrors a desktop browser client.
func DefaultProperties() Properties {
	return Properties{
		OS:      "Windows 11",
		Browser: "Google Chrome",
		Device:  "Windows",
	}
}

type outboundFrame struct {
	Op   int `json:"op"`
	Data any `json:"d"`
}

type identifyData struct {
	Token      string     `json:"token"`
	Properties Properties `json:"properties"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

func identifyFrame(token string, properties Properties) outboundFrame {
	return outboundFrame{
		Op: OpIdentify,
		Data: identifyData{
			Token:      token,
			Properties: properties,
		},
	}
}

func heartbeatFrame() outboundFrame {
	return outboundFrame{Op: OpHeartbeat, Data: nil}
}

func presenceFrame(status string, afk bool) outboundFrame {
	idleSince := 0
	return outboundFrame{
		Op: OpPresenceUpdate,
		Data: discordgo.UpdateStatusData{
			IdleSince:  &idleSince,
			Activities: []*discordgo.Activity{},
			AFK:        afk,
			Status:     status,
		},
	}
}

// decodeEvent parses one inbound frame envelope {op, s, t, d}.
func decodeEvent(raw []byte) (*discordgo.Event, error) {
	var event discordgo.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decode gateway frame: %w", err)
	}

	return &event, nil
}

func decodeHello(event *discordgo.Event) (helloData, error) {
	if event.Operation != OpHello {
		return helloData{}, fmt.Errorf("expected hello op %d, got op %d", OpHello, event.Operation)
	}

	var hello helloData
	if err := json.Unmarshal(event.RawData, &hello); err != nil {
		return helloData{}, fmt.Errorf("decode hello: %w", err)
	}
	if hello.HeartbeatInterval <= 0 {
		return helloData{}, fmt.Errorf("decode hello: invalid heartbeat interval %d", hello.HeartbeatInterval)
	}

	return hello, nil
}
