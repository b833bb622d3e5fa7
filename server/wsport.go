package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/log"
)

// agentFrame is the wire format the in-page agent relay speaks on /ws.
// Inbound frames carry window messages it observed on the page; outbound
// frames carry payloads it must post into the embed frame's content window.
type agentFrame struct {
	Origin string          `json:"origin,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// wsPort adapts an agent websocket to the dom.MessagePort contract.
type wsPort struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	messages  chan dom.Message
	closeOnce sync.Once
}

func newWSPort(conn *websocket.Conn) *wsPort {
	p := &wsPort{
		conn:     conn,
		messages: make(chan dom.Message, 64),
	}
	go p.readLoop()
	return p
}

func (p *wsPort) Post(data []byte) error {
	frame, err := json.Marshal(agentFrame{Data: data})
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

func (p *wsPort) Messages() <-chan dom.Message {
	return p.messages
}

func (p *wsPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.conn.Close()
	})
	return err
}

func (p *wsPort) readLoop() {
	defer close(p.messages)
	defer p.Close()

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("server: agent connection lost: %v", err)
			}
			return
		}

		var frame agentFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Tracef("server: dropped malformed agent frame: %v", err)
			continue
		}

		select {
		case p.messages <- dom.Message{Origin: frame.Origin, Data: frame.Data}:
		default:
			log.Debugf("server: agent message buffer full, dropped one")
		}
	}
}
