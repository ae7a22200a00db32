// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Postoffice-status queries a running simulation over its status
// socket.
//
//	postoffice-status --socket /run/postoffice.sock
//	postoffice-status --socket /run/postoffice.sock --terminate
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/postoffice/lib/director"
	"github.com/bureau-foundation/postoffice/lib/process"
	"github.com/bureau-foundation/postoffice/lib/service"
	"github.com/bureau-foundation/postoffice/lib/version"
)

func main() {
	process.Exit(run())
}

func run() error {
	var (
		socketPath  string
		terminate   bool
		timeout     time.Duration
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("postoffice-status", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "status socket of the running simulation (required)")
	flagSet.BoolVar(&terminate, "terminate", false, "ask the simulation to stop instead of printing its status")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("postoffice-status %s\n", version.Info())
		return nil
	}
	if socketPath == "" {
		return fmt.Errorf("--socket is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client := service.NewClient(socketPath)

	if terminate {
		if err := client.Call(ctx, service.ActionTerminate, nil); err != nil {
			return err
		}
		fmt.Println("termination requested")
		return nil
	}

	var snapshot director.Snapshot
	if err := client.Call(ctx, service.ActionStatus, &snapshot); err != nil {
		return err
	}
	return printSnapshot(os.Stdout, snapshot)
}

func printSnapshot(w io.Writer, snapshot director.Snapshot) error {
	state := "closed"
	switch {
	case snapshot.Terminating:
		state = "terminating"
	case snapshot.DayInProgress:
		state = "open"
	}
	heading := lipgloss.NewStyle().Bold(true)
	if _, err := fmt.Fprintf(w, "%s\nday %d (%s), %d completed, ticket ready %d\n\n",
		heading.Render("Run "+snapshot.RunID), snapshot.Day, state, snapshot.DaysCompleted, snapshot.TicketReady); err != nil {
		return err
	}

	queues := table.New().Headers("SERVICE", "WAITING", "NEXT TICKET")
	for _, queue := range snapshot.Queues {
		queues.Row(queue.Service, strconv.Itoa(queue.Waiting), strconv.Itoa(queue.NextTicket))
	}

	counters := table.New().Headers("COUNTER", "SERVICE", "OPERATOR", "SERVED")
	for index, counter := range snapshot.Counters {
		serviceName, operator := "-", "-"
		if counter.Active {
			serviceName = counter.Service
		}
		if counter.Operator != 0 {
			operator = strconv.Itoa(int(counter.Operator))
		}
		counters.Row(strconv.Itoa(index), serviceName, operator, strconv.Itoa(counter.Served))
	}

	operators := table.New().Headers("OPERATOR", "SERVICE", "STATUS", "COUNTER", "SERVED TODAY", "PAUSES")
	for _, operator := range snapshot.Operators {
		counter := "-"
		if operator.Counter >= 0 {
			counter = strconv.Itoa(operator.Counter)
		}
		operators.Row(strconv.Itoa(int(operator.ID)), operator.Service, operator.Status, counter,
			strconv.Itoa(operator.DailyServed), strconv.Itoa(operator.TotalPauses))
	}

	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", queues.Render(), counters.Render(), operators.Render())
	return err
}
