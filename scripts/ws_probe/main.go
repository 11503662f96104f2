// ws_probe opens two websocket clients against a running instance,
// joins both to the same class, pushes a code change from the first
// and waits for the second to receive it. Useful as a smoke check
// after deploys and when debugging the broadcast fabric across
// instances (point the two clients at different base URLs).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

type frame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type probeClient struct {
	name string
	conn *websocket.Conn
}

func main() {
	var (
		baseA   string
		baseB   string
		tokenA  string
		tokenB  string
		classID int64
		teamID  int64
		timeout time.Duration
	)

	flag.StringVar(&baseA, "base-a", "ws://localhost:8080", "base URL for the first client")
	flag.StringVar(&baseB, "base-b", "", "base URL for the second client (defaults to base-a)")
	flag.StringVar(&tokenA, "token-a", "", "JWT for the first client")
	flag.StringVar(&tokenB, "token-b", "", "JWT for the second client")
	flag.Int64Var(&classID, "class", 1, "class to join")
	flag.Int64Var(&teamID, "team", 0, "team for the code change")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")
	flag.Parse()

	if baseB == "" {
		baseB = baseA
	}
	if tokenA == "" || tokenB == "" {
		log.Fatal("both -token-a and -token-b are required")
	}
	if teamID == 0 {
		log.Fatal("-team is required")
	}

	sender, err := dial("sender", baseA, tokenA)
	if err != nil {
		log.Fatalf("dial sender: %v", err)
	}
	defer sender.conn.Close()

	receiver, err := dial("receiver", baseB, tokenB)
	if err != nil {
		log.Fatalf("dial receiver: %v", err)
	}
	defer receiver.conn.Close()

	for _, c := range []*probeClient{sender, receiver} {
		if err := c.send(envelope{Action: "join_class", Payload: map[string]int64{"class_id": classID}}); err != nil {
			log.Fatalf("%s join_class: %v", c.name, err)
		}
	}

	// Give the join fan-out a moment before pushing code.
	time.Sleep(500 * time.Millisecond)

	marker := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	change := map[string]interface{}{"team_id": teamID, "code": marker}
	if err := sender.send(envelope{Action: "code_change", Payload: change}); err != nil {
		log.Fatalf("sender code_change: %v", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		receiver.conn.SetReadDeadline(deadline)
		var f frame
		if err := receiver.conn.ReadJSON(&f); err != nil {
			log.Fatalf("receiver read: %v", err)
		}
		switch f.Kind {
		case "CODE_CHANGE":
			if contains(f.Payload, marker) {
				fmt.Printf("OK: receiver observed code change %s\n", marker)
				return
			}
		case "ERROR":
			log.Fatalf("receiver got error frame: %s", f.Payload)
		}
	}

	fmt.Fprintln(os.Stderr, "FAIL: code change never reached the receiver")
	os.Exit(1)
}

func dial(name, base, token string) (*probeClient, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.Path = "/api/v1/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &probeClient{name: name, conn: conn}, nil
}

func (c *probeClient) send(e envelope) error {
	return c.conn.WriteJSON(e)
}

func contains(raw json.RawMessage, marker string) bool {
	var msg struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false
	}
	return msg.Code == marker
}
