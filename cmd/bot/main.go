// Command bot is a scripted peer for exercising a running node by hand: it
// joins over UDP, sends one message, stays online, then leaves so the other
// side can watch it go offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/config"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
	"github.com/satishydv/meshaid-mvp/internal/store"
	"github.com/satishydv/meshaid-mvp/internal/transport"
)

func main() {
	cfg := config.Default()
	nick := flag.String("nick", "TestBot", "Bot nickname")
	kind := flag.String("type", string(protocol.KindSOS), "Message type to send")
	stay := flag.Duration("stay", 10*time.Second, "How long to stay online after sending")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "First UDP port of the mesh range")
	flag.Parse()

	k, err := protocol.ParseKind(*kind)
	if err != nil {
		log.Fatal(err)
	}

	// 1. Setup
	tr, err := transport.ListenUDP(transport.UDPConfig{
		BindHost: cfg.UDPBindHost,
		BasePort: cfg.Port,
		PortSpan: cfg.PortSpan,
		Targets:  cfg.UDPTargets,
	})
	if err != nil {
		log.Fatalf("Failed to join mesh: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mesh := engine.New(tr, store.NewSnapshots(store.NewMemoryStore()), engine.DefaultOptions())

	// 2. Announce
	fmt.Printf("Bot %s joining on %s...\n", *nick, tr.LocalAddr())
	mesh.Init(ctx, *nick)

	// 3. Send Message (Triggers SOS flash on the other side)
	time.Sleep(2 * time.Second)
	msg, ok := mesh.Send(k, "Hello! I am a bot. This message should FLASH.", nil, "Test bench")
	if !ok {
		log.Fatal("Failed to send message")
	}
	fmt.Printf("Sent %s message %s\n", msg.Type, msg.ID)

	// 4. Wait (bot shows as online)
	fmt.Printf("Staying online for %s (check %q is listed online)...\n", *stay, *nick)
	time.Sleep(*stay)

	// 5. Leave (bot goes offline after the liveness timeout)
	mesh.Stop()
	fmt.Printf("Bot shutting down (check %q goes offline within %s)...\n", *nick, engine.DefaultOptions().LivenessTimeout+engine.DefaultOptions().SweepInterval)
}
