package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cli/config"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/usecase"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

func cmdChat() *cli.Command {
	var roomName string
	var userName string
	var repoCfg config.Repository
	var llmCfg config.LLM
	var runtimeCfg config.Runtime
	var characterCfg config.Character

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "room",
			Usage:       "Room name for this session; reuse a name to continue its history",
			Value:       "local-chat",
			Sources:     cli.EnvVars("TGRAG_CHAT_ROOM"),
			Destination: &roomName,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "Name to speak as",
			Value:       "operator",
			Sources:     cli.EnvVars("TGRAG_CHAT_USER"),
			Destination: &userName,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, runtimeCfg.Flags()...)
	flags = append(flags, characterCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive session with the agent on the configured backend",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			character, err := characterCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load character")
			}

			repo, err := repoCfg.Configure(ctx, runtimeCfg.Dimension())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			rt, err := usecase.New(repo, llmClient, character, runtimeCfg.Dimension(),
				usecase.WithBreaker(runtimeCfg.Breaker()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize runtime")
			}
			defer rt.Close()

			roomID := types.RoomID(types.DeterministicID("chat:" + roomName))
			userID := types.UserID(types.DeterministicID("chat-user:" + userName))

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprintf(c.Root().Writer, "Chat with %s started. Type 'exit' to quit.\n", character.Name)

			for {
				fmt.Fprintf(c.Root().Writer, "> ")
				if !scanner.Scan() {
					break
				}

				text := scanner.Text()
				if text == "exit" {
					break
				}
				if text == "" {
					continue
				}

				content, err := rt.HandleMessage(ctx, &model.Memory{
					RoomID: roomID,
					UserID: userID,
					Content: model.Content{
						Text:     text,
						Metadata: map[string]any{"senderName": userName},
					},
				})
				if err != nil {
					return goerr.Wrap(err, "failed to handle message")
				}

				if content == nil {
					fmt.Fprintf(c.Root().Writer, "(%s stays silent)\n", character.Name)
					continue
				}
				fmt.Fprintf(c.Root().Writer, "%s\n", content.Text)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
