package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/automoto/warband-mp/assets"
	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/identity"
	"github.com/automoto/warband-mp/input"
	"github.com/automoto/warband-mp/network"
	"github.com/automoto/warband-mp/replication"
	"github.com/automoto/warband-mp/scene"
	"github.com/automoto/warband-mp/shared/leveldata"
	"github.com/automoto/warband-mp/shared/netconfig"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/automoto/warband-mp/sim"
)

func main() {
	cfg := config.Default()

	host := flag.Bool("host", false, "Host a session instead of joining one")
	connect := flag.String("connect", "localhost:7373", "Host address to join")
	port := flag.Uint("port", cfg.Net.Port, "Port to listen on when hosting")
	tickRate := flag.Int("tickrate", cfg.Sim.TickRate, "Simulation tick rate (updates per second)")
	name := flag.String("name", cfg.Net.ServerName, "Session display name")
	version := flag.String("version", netconfig.ProtocolVersion, "Required client version (empty = accept any)")
	arena := flag.String("arena", assets.DefaultArena, "Embedded arena name or path to a .tmx file")
	cascade := flag.Bool("cascade", cfg.Sim.CascadeLeave, "Remove a leaving participant's army")
	bot := flag.Bool("bot", false, "Drive the local participant with random input")
	id := flag.String("id", "", "Participant id (default: persisted identity)")
	statusEvery := flag.Duration("status", 5*time.Second, "Status log interval (0 = off)")
	flag.Parse()

	cfg.Net.Port = *port
	cfg.Net.ServerName = *name
	cfg.Net.Version = *version
	cfg.Sim.TickRate = *tickRate
	cfg.Sim.CascadeLeave = *cascade

	localID, err := loadIdentity(*id)
	if err != nil {
		log.Fatalf("Failed to load identity: %v", err)
	}

	keys := input.NewKeyTracker()
	var wander *input.Wander
	if *bot {
		wander = input.NewWander(keys, cfg.Sim.TickRate, uint64(time.Now().UnixNano()))
	}

	var peer *replication.Peer
	var hostTransport *network.HostTransport
	if *host {
		a, err := loadArena(*arena)
		if err != nil {
			log.Fatalf("Failed to load arena: %v", err)
		}
		hostTransport = network.NewHostTransport(localID, cfg)
		peer = replication.NewHost(cfg, hostTransport, keys, sim.New(cfg, sim.WithArena(a)))

		log.Printf("Hosting %q on port %d as %s (tick rate: %d/s, version: %s)",
			cfg.Net.ServerName, cfg.Net.Port, localID, cfg.Sim.TickRate, cfg.Net.Version)
		go func() {
			if err := hostTransport.Start(); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		}()
	} else {
		transport := network.NewClientTransport(localID, netconfig.ProtocolVersion)
		transport.Connect(*connect)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Net.DialTimeout)
		err := transport.WaitJoined(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to join %s: %v", *connect, err)
		}
		if rate := transport.TickRate(); rate > 0 {
			cfg.Sim.TickRate = rate
		}
		log.Printf("Joined %q hosted by %s as %s", transport.ServerName(), transport.HostID(), localID)
		peer = replication.NewClient(cfg, transport, keys)
	}

	view := scene.New(cfg)
	step := cfg.FixedStep()
	lastStatus := time.Now()
	loop := replication.NewLoop(peer, cfg.Sim.TickRate, func(st *state.State) {
		view.Apply(st)
		view.Update(step)
		if wander != nil {
			wander.Step()
		}
		if *statusEvery > 0 && time.Since(lastStatus) >= *statusEvery {
			lastStatus = time.Now()
			logStatus(peer, view, st)
			if hostTransport != nil {
				log.Printf("[host] %d connected peers", hostTransport.PeerCount())
			}
		}
	})
	go loop.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	loop.Stop()
	if err := peer.Close(); err != nil {
		log.Printf("Close error: %v", err)
	}
}

func loadIdentity(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	store, err := identity.OpenStore("warband")
	if err != nil {
		log.Printf("Warning: Could not open identity store, using a temporary id: %v", err)
		return identity.Load(nil)
	}
	return identity.Load(store)
}

func loadArena(name string) (*leveldata.Arena, error) {
	if filepath.Ext(name) != ".tmx" {
		return assets.LoadArena(name)
	}
	dir, file := filepath.Split(name)
	if dir == "" {
		dir = "."
	}
	return leveldata.LoadArena(os.DirFS(dir), file)
}

func logStatus(peer *replication.Peer, view *scene.Scene, st *state.State) {
	me, ok := st.Participants[peer.ID()]
	where := "not spawned"
	if ok {
		where = fmt.Sprintf("(%.0f, %.0f)", me.Position.X, me.Position.Y)
	}
	log.Printf("[%s] tick %d: %d participants, %d units, %d soldiers; me at %s",
		peer.Role(), st.Tick,
		view.Count(scene.KindParticipant), view.Count(scene.KindUnit), view.Count(scene.KindSoldier),
		where)
}
