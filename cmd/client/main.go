// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package main is the festwire terminal: the box-office client an
// employee sells tickets from.
//
// The terminal keeps a local mirror of the catalog. Push events from
// the server patch it in near real time; a periodic pull replaces it
// wholesale so dropped events cannot leave the mirror stale for more
// than one pull interval. Commands are read line by line from stdin:
//
//	shows                      list the show catalog
//	search <artist> [time]     filter shows by artist and start time
//	sell <show-id> <name> <n>  sell n seats to a named client
//	tickets                    list sold tickets
//	clients                    list registered clients
//	addclient <name>           register a client
//	refresh                    pull the catalog now
//	quit                       exit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/festwire/festwire/internal/client"
	"github.com/festwire/festwire/internal/config"
	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
	"github.com/festwire/festwire/internal/supervisor"
)

func main() {
	username := flag.String("user", "", "employee username")
	password := flag.String("pass", "", "employee password")
	register := flag.Bool("register", false, "create the employee account instead of logging in")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: festwire-client -user <name> -pass <password> [-register]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connector := client.NewConnector(cfg.Client.ServerAddr)
	if err := connector.Connect(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to reach the server")
	}
	defer connector.Close()

	if *register {
		if _, err := connector.Register(ctx, *username, *password); err != nil {
			logging.Fatal().Err(err).Msg("registration failed")
		}
	} else {
		if _, err := connector.Login(ctx, *username, *password); err != nil {
			logging.Fatal().Err(err).Msg("login failed")
		}
	}
	logging.Info().Str("username", *username).Msg("signed in")

	state := client.NewState()
	puller := client.NewPuller(connector, state, cfg.Client.PullInterval)
	listener := client.NewPushListener(cfg.Client.PushURL, state, puller.TriggerRefresh)

	tree := supervisor.NewTree("festwire-terminal", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddTransportService(puller)
	tree.AddMessagingService(listener)
	treeErr := tree.ServeBackground(ctx)

	// Prime the mirror before the first prompt.
	puller.TriggerRefresh()

	term := &terminal{ctx: ctx, connector: connector, state: state, puller: puller, out: os.Stdout}
	go term.announceChanges()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			break
		}
		if line != "" {
			term.run(line)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		fmt.Print("> ")
	}

	stop()
	if err := <-treeErr; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("terminal services failed")
	}
}

type terminal struct {
	ctx       context.Context
	connector *client.Connector
	state     *client.State
	puller    *client.Puller
	out       *os.File
}

// announceChanges nudges the operator whenever another terminal's
// activity lands in the mirror.
func (t *terminal) announceChanges() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.state.Changed():
			logging.Debug().Msg("catalog updated")
		}
	}
}

func (t *terminal) run(line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "shows":
		t.printShows()
	case "search":
		t.search(args)
	case "sell":
		t.sell(args)
	case "tickets":
		t.printTickets()
	case "clients":
		t.printClients()
	case "addclient":
		t.addClient(args)
	case "refresh":
		t.puller.TriggerRefresh()
		fmt.Fprintln(t.out, "refresh requested")
	case "help":
		fmt.Fprintln(t.out, "commands: shows, search <artist> [time], sell <show-id> <name> <seats>, tickets, clients, addclient <name>, refresh, quit")
	default:
		fmt.Fprintf(t.out, "unknown command %q, try help\n", cmd)
	}
}

func (t *terminal) printShows() {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tARTIST\tDATE\tLOCATION\tAVAILABLE\tSOLD")
	for _, s := range t.state.Shows() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.Name, s.Artist, s.Date.Format("2006-01-02 15:04"), s.Location, s.AvailableSeats, s.SoldSeats)
	}
	_ = w.Flush()
}

func (t *terminal) search(args []string) {
	artist := ""
	timeOfDay := ""
	if len(args) > 0 {
		artist = args[0]
	}
	if len(args) > 1 {
		timeOfDay = args[1]
	}
	shows, err := t.connector.ShowsByArtistAndTime(t.ctx, artist, timeOfDay)
	if err != nil {
		fmt.Fprintf(t.out, "search failed: %v\n", err)
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tARTIST\tDATE\tAVAILABLE")
	for _, s := range shows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Artist, s.Date.Format("2006-01-02 15:04"), s.AvailableSeats)
	}
	_ = w.Flush()
}

func (t *terminal) sell(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(t.out, "usage: sell <show-id> <client-name> <seats>")
		return
	}
	showID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(t.out, "bad show id %q\n", args[0])
		return
	}
	// Client names may have spaces; the seat count is the last field.
	name := strings.Join(args[1:len(args)-1], " ")
	seats := args[len(args)-1]

	ticket, err := t.connector.SellTicket(t.ctx, protocol.ShowRef{ID: showID}, name, seats)
	if err != nil {
		fmt.Fprintf(t.out, "sale refused: %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "sold ticket %d: %s seats for %s at %d\n", ticket.ID, seats, ticket.Client.Name, ticket.Price)
	t.puller.TriggerRefresh()
}

func (t *terminal) printTickets() {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSHOW\tCLIENT\tSEATS\tPRICE")
	for _, tk := range t.state.Tickets() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", tk.ID, tk.ShowName, tk.Client.Name, tk.NumberOfSeats, tk.Price)
	}
	_ = w.Flush()
}

func (t *terminal) printClients() {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, c := range t.state.Clients() {
		fmt.Fprintf(w, "%d\t%s\n", c.ID, c.Name)
	}
	_ = w.Flush()
}

func (t *terminal) addClient(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(t.out, "usage: addclient <name>")
		return
	}
	name := strings.Join(args, " ")
	saved, err := t.connector.AddClient(t.ctx, models.Client{Name: name})
	if err != nil {
		fmt.Fprintf(t.out, "addclient failed: %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "registered client %d: %s\n", saved.ID, saved.Name)
	t.puller.TriggerRefresh()
}
