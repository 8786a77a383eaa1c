package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"closelink/internal/app"
	"closelink/internal/domain"
	"closelink/internal/identity"
	"closelink/internal/relay"
	"closelink/internal/session"
	"closelink/internal/signaling"
)

// chat [peer-id]: with an argument, send a link request to that peer's
// current ephemeral identity and wait for acceptance; without one,
// listen for an incoming request. Either way the accepted session id
// becomes the relay join key for an end-to-end encrypted session.
func chatCmd() *cobra.Command {
	var greeting string
	cmd := &cobra.Command{
		Use:   "chat [peer-id]",
		Short: "Open an end-to-end encrypted session with a peer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			st := appCtx.Open(passphrase)
			me, ok, err := st.LoadProfile()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no profile yet; run `closelink profile init` first")
			}
			device, err := app.EnsureDevice(st)
			if err != nil {
				return err
			}
			secret, err := identity.NewDeviceSecret()
			if err != nil {
				return err
			}
			eph := identity.Derive(device.StableID,
				identity.EpochAt(time.Now(), identity.DefaultRotationWindow), secret)

			ctx := cmd.Context()
			accepted := make(chan string, 1)
			requests := make(chan domain.LinkRequest, 4)
			sig, err := signaling.Dial(ctx, appCtx.Cfg.RelayURL, eph.Hex(), signaling.Options{
				OnRequest:  func(req domain.LinkRequest) { requests <- req },
				OnAccepted: func(sessionID string) { accepted <- sessionID },
				Logger:     appCtx.Logger,
			})
			if err != nil {
				return err
			}
			defer sig.Close()

			stdin := bufio.NewScanner(os.Stdin)
			var sessionID string
			if len(args) == 1 {
				sessionID = signaling.NewSessionID(eph.Hex(), args[0], time.Now())
				if err := sig.SendLinkRequest(args[0], sessionID, greeting); err != nil {
					return err
				}
				fmt.Println("link request sent, waiting for acceptance...")
				select {
				case sessionID = <-accepted:
				case <-ctx.Done():
					return ctx.Err()
				}
			} else {
				fmt.Printf("listening for link requests as %s\n", eph.Hex())
				var req domain.LinkRequest
				select {
				case req = <-requests:
				case <-ctx.Done():
					return ctx.Err()
				}
				fmt.Printf("link request from %s: %q\naccept? [y/N] ", req.FromEphemeralID, req.Message)
				if !stdin.Scan() || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(stdin.Text())), "y") {
					return sig.Respond(req.FromEphemeralID, false, req.FromSessionID)
				}
				if err := sig.Respond(req.FromEphemeralID, true, req.FromSessionID); err != nil {
					return err
				}
				sessionID = req.FromSessionID
			}

			return runSession(cmd, stdin, sessionID, me.Handle)
		},
	}
	cmd.Flags().StringVar(&greeting, "message", "hi", "intro message sent with the link request")
	return cmd
}

func runSession(cmd *cobra.Command, stdin *bufio.Scanner, sessionID, handle string) error {
	closed := make(chan struct{})
	var sess *session.Session

	client := relay.NewClient(appCtx.Cfg.RelayURL+"/ws/"+sessionID, relay.Options{
		OnFrame: func(f domain.Frame) {
			if sess != nil {
				sess.HandleFrame(f)
			}
		},
		OnError: func(err error) { fmt.Printf("! relay: %v\n", err) },
		Logger:  appCtx.Logger,
	})

	sess, err := session.New(sessionID, client, handle, session.Events{
		OnEstablished:   func() { fmt.Println("* session established, messages are end-to-end encrypted") },
		OnMessage:       func(text string) { fmt.Printf("peer: %s\n", text) },
		OnRevealRequest: func() { fmt.Println("* peer wants to exchange handles: /accept or /reject") },
		OnRevealed:      func(peerHandle string) { fmt.Printf("* peer revealed as %s\n", peerHandle) },
		OnClosed:        func() { close(closed) },
	}, appCtx.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	client.Connect(cmd.Context())
	if err := sess.Start(); err != nil {
		return err
	}
	fmt.Printf("joined session %s; /reveal /accept /reject /quit\n", sessionID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	for {
		select {
		case <-closed:
			fmt.Println("* session closed")
			return nil
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(sess, strings.TrimSpace(line)); err != nil {
				return err
			}
		}
	}
}

func handleLine(sess *session.Session, line string) error {
	switch line {
	case "":
		return nil
	case "/quit":
		sess.Close()
		return nil
	case "/reveal":
		if err := sess.RequestReveal(); err != nil {
			fmt.Printf("! %v\n", err)
		}
		return nil
	case "/accept":
		if err := sess.RespondReveal(true); err != nil {
			fmt.Printf("! %v\n", err)
		}
		return nil
	case "/reject":
		return sess.RespondReveal(false)
	default:
		if err := sess.Send(line); err != nil {
			fmt.Printf("! %v\n", err)
		}
		return nil
	}
}
