package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/secmon-lab/mnemosyne/pkg/agent/tool"
	"github.com/secmon-lab/mnemosyne/pkg/agent/tool/core"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/service/extract"
	"github.com/secmon-lab/mnemosyne/pkg/service/think"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

const chatSystemPrompt = `You are a memory-augmented assistant. You have tools to store facts
into a persistent memory graph, search it, and run structured thinking sessions.

Guidelines:
- When the user tells you something worth keeping (preferences, decisions, facts about
  their environment), store it with the remember tool.
- Before answering questions about past conversations or the user's context, search memory.
- For multi-step reasoning, open a think session, add thoughts, recall related memories
  into it, conclude, and commit the result.
- Answer concisely and mention when an answer is based on recalled memory.`

func cmdChat() *cli.Command {
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var tuningCfg config.Tuning

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Interactive chat with the memory agent",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := tuningCfg.Configure(); err != nil {
				return goerr.Wrap(err, "failed to load tuning configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}
			if llmClient == nil {
				return goerr.New("gemini-project is required for chat")
			}

			extractor, err := extract.New(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize extraction service")
			}

			uc := usecase.New(repo, extractor,
				usecase.WithDecisionOptions(tuningCfg.DecisionOptions()...),
				usecase.WithSearchOptions(tuningCfg.SearchOptions()...),
				usecase.WithThinkOptions(think.WithDefaultLimits(tuningCfg.SessionLimits())),
			)

			agent := gollem.New(llmClient,
				gollem.WithSystemPrompt(chatSystemPrompt),
				gollem.WithTools(core.New(uc)...),
			)

			return runChatLoop(ctx, agent)
		},
	}
}

func runChatLoop(ctx context.Context, agent *gollem.Agent) error {
	promptColor := color.New(color.FgCyan, color.Bold)
	traceColor := color.New(color.FgHiBlack)
	replyColor := color.New(color.FgHiWhite)

	// Tool progress messages are printed inline while the agent works.
	ctx = tool.WithUpdate(ctx, func(_ context.Context, message string) {
		traceColor.Printf("  %s\n", message)
	})

	fmt.Println("mnemosyne chat (type 'exit' or 'quit' to leave)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		resp, err := agent.Execute(ctx, gollem.Text(line))
		if err != nil {
			logging.Default().Error("agent execution failed", "error", err)
			continue
		}

		replyColor.Println(strings.Join(resp.Texts, "\n"))
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read input")
	}
	return nil
}
