package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat [MESSAGE...]",
	Short: "Talk to the Glide companion",
	Long: `Sends one message to the companion, or starts a conversation on stdin
when no message is given. The companion can look up your next steps and
search the web. Type 'exit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if len(args) > 0 {
				return chatOnce(ctx, a, strings.Join(args, " "))
			}
			return chatLoop(ctx, a)
		})
	},
}

func chatOnce(ctx context.Context, a *app, msg string) error {
	reply, err := a.companion.Reply(ctx, localOwner, msg)
	fmt.Println(reply)
	return err
}

func chatLoop(ctx context.Context, a *app) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	prompt := color.New(color.FgMagenta, color.Bold).Sprint("you › ")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		switch msg {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		// The fallback reply is already user-safe; keep the conversation going.
		reply, _ := a.companion.Reply(ctx, localOwner, msg)
		fmt.Printf("%s %s\n", cyan.Sprint("glide ›"), reply)
	}
}
