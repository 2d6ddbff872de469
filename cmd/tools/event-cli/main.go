package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/script-core/internal/host"
)

const (
	defaultServerAddr = nats.DefaultURL
	timeFormat        = "15:04:05.000"
)

// event-cli изображает движок на другой стороне NATS-моста: шлёт события и
// создание сущностей, показывает исходящие команды ядра.
func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "NATS server URL")
		prefix     = flag.String("prefix", "scriptcore", "Subject prefix of the bridge")
		command    = flag.String("cmd", "tail", "Command: event, create, start, tail")
		kind       = flag.String("kind", "", "Event kind for -cmd event (touch_start, client_event, ...)")
		args       = flag.String("args", "", "Event args (comma-separated)")
		id         = flag.String("id", "", "Object id for -cmd create")
		class      = flag.String("class", "", "Actor class for -cmd create")
		tag        = flag.String("tag", "", "Actor tag for -cmd create")
		limit      = flag.Int("limit", 0, "Stop tail after N commands (0 - unlimited)")
	)
	flag.Parse()

	conn, err := nats.Connect(*serverAddr, nats.Name("scriptcore-event-cli"), nats.Timeout(5*time.Second))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer conn.Close()

	switch *command {
	case "event":
		if *kind == "" {
			log.Fatalf("❌ -kind is required")
		}
		msg := host.InboundEvent{Kind: *kind, Args: toAny(parseStringList(*args))}
		if err := publish(conn, *prefix+".event", msg); err != nil {
			log.Fatalf("❌ Publish failed: %v", err)
		}
		fmt.Printf("📨 %s %v\n", msg.Kind, msg.Args)

	case "create":
		if *id == "" || *class == "" {
			log.Fatalf("❌ -id and -class are required")
		}
		msg := host.InboundCreate{ID: *id, Class: *class, Tag: *tag}
		if err := publish(conn, *prefix+".create", msg); err != nil {
			log.Fatalf("❌ Publish failed: %v", err)
		}
		fmt.Printf("🧩 create %s (%s)\n", msg.ID, msg.Class)

	case "start":
		loc, err := requestStartLocation(conn, *prefix)
		if err != nil {
			log.Fatalf("❌ Start location failed: %v", err)
		}
		fmt.Printf("📍 start %+v look_at %+v\n", loc.Location, loc.LookAt)

	case "tail":
		if err := tailCommands(conn, *prefix, *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}

func publish(conn *nats.Conn, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return err
	}
	return conn.FlushTimeout(2 * time.Second)
}

// requestStartLocation спрашивает у ядра точку появления аватаров
func requestStartLocation(conn *nats.Conn, prefix string) (*host.StartLocation, error) {
	msg, err := conn.Request(prefix+".start_location", nil, 2*time.Second)
	if err != nil {
		return nil, err
	}
	var reply host.Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%s", reply.Error)
	}
	var loc host.StartLocation
	if err := json.Unmarshal(reply.Value, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// tailCommands печатает команды ядра, пока не придёт сигнал или не наберётся limit
func tailCommands(conn *nats.Conn, prefix string, limit int) error {
	fmt.Printf("🎬 Tailing %s.cmd.> (limit: %d)\n", prefix, limit)

	msgs := make(chan *nats.Msg, 256)
	sub, err := conn.ChanSubscribe(prefix+".cmd.>", msgs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	count := 0
	for {
		select {
		case msg := <-msgs:
			printCommand(msg)
			count++
			if limit > 0 && count >= limit {
				fmt.Printf("\n📊 Total commands: %d\n", count)
				return nil
			}
		case <-sigCh:
			fmt.Printf("\n📊 Total commands: %d\n", count)
			return nil
		}
	}
}

func printCommand(msg *nats.Msg) {
	var cmd host.Command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		fmt.Printf("[%s] %s <bad payload: %v>\n", time.Now().Format(timeFormat), msg.Subject, err)
		return
	}
	fmt.Printf("[%s] %s id=%s args=%v\n", time.Now().Format(timeFormat), cmd.Op, cmd.ID, cmd.Args)
	// геттеры ждут ответа
	if msg.Reply != "" {
		_ = msg.Respond([]byte(`{}`))
	}
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
