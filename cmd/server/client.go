package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bixboy/NetLessons/internal/client"
	"github.com/bixboy/NetLessons/internal/protocol"
)

func newClientCmd() *cobra.Command {
	var (
		serverAddr   string
		name         string
		pingInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Starts an interactive terminal client.",
		Long: `Starts an interactive terminal client. Typed lines are sent as chat,
except for these local commands:

  :guess N          submit a guess
  :w NAME TEXT      whisper to NAME
  :play             ask the server to start a round
  :spectate on|off  toggle spectator mode
  :quit             log out and exit

Slash commands such as /help are sent to the server as chat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.Dial(cmd.Context(), serverAddr, client.WithPingInterval(pingInterval))
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Login(name); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			go printEvents(out, c.Events())

			return runPrompt(c, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:55555", "Lobby address (host:port)")
	cmd.Flags().StringVarP(&name, "name", "n", "Player", "Display name")
	cmd.Flags().DurationVar(&pingInterval, "ping-interval", client.DefaultPingInterval, "Keep-alive period; must stay below the server's session timeout")
	return cmd
}

func runPrompt(c *client.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch fields := strings.Fields(line); fields[0] {
		case ":quit":
			return c.Logout()
		case ":play":
			err = c.RequestStart()
		case ":guess":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: :guess N")
				continue
			}
			v, convErr := strconv.ParseInt(fields[1], 10, 32)
			if convErr != nil {
				fmt.Fprintf(out, "not a number: %s\n", fields[1])
				continue
			}
			err = c.Guess(int32(v))
		case ":w":
			if len(fields) < 3 {
				fmt.Fprintln(out, "usage: :w NAME TEXT")
				continue
			}
			err = c.Whisper(fields[1], strings.Join(fields[2:], " "))
		case ":spectate":
			err = c.SetSpectator(len(fields) < 2 || fields[1] != "off")
		default:
			err = c.Say(line)
		}
		if err != nil {
			fmt.Fprintf(out, "send failed: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return c.Logout()
}

func printEvents(out io.Writer, events <-chan protocol.Packet) {
	for pkt := range events {
		if line := describe(pkt); line != "" {
			fmt.Fprintln(out, line)
		}
	}
}

// describe renders a server packet for the terminal. Pongs render as "".
func describe(pkt protocol.Packet) string {
	switch p := pkt.(type) {
	case *protocol.Chat:
		if p.Target != "" {
			return fmt.Sprintf("[%s] %s -> %s: %s", p.Channel, p.Sender, p.Target, p.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", p.Channel, p.Sender, p.Message)
	case *protocol.ConnectionState:
		if p.Connected {
			return fmt.Sprintf("* %s joined", p.Name)
		}
		return fmt.Sprintf("* %s left", p.Name)
	case *protocol.PlayerList:
		return fmt.Sprintf("* %s is here", p.Name)
	case *protocol.GameStart:
		return "* A round has started: guess a number between 0 and 99"
	case *protocol.GameData:
		if p.Value == protocol.HintHigher {
			return "* Higher!"
		}
		return "* Lower!"
	case *protocol.GameResult:
		return fmt.Sprintf("* %s found the number!", p.WinnerName)
	case *protocol.GameEnd:
		return "* The round is over"
	default:
		return ""
	}
}
