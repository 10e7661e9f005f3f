package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/action"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/prompt"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/errutil"
)

const (
	recentMessageCount = 10
	goalCount          = 5
	actionExampleCount = 5

	// Fact retrieval mirrors the loose default of the memory search:
	// a low floor keeps recall high, ranking does the rest.
	factMatchThreshold = 0.1
	factMatchCount     = 5
)

// ComposeState builds the prompt state for one inbound message: actors,
// recent conversation, goals, retrieved facts, provider context and the
// registry's action sections. Provider and fact retrieval failures
// degrade to empty sections instead of failing the whole composition.
func (rt *Runtime) ComposeState(ctx context.Context, message *model.Memory) (*model.State, error) {
	actors, err := rt.repo.Room().ActorsForRoom(ctx, message.RoomID)
	if err != nil {
		return nil, err
	}

	recent, err := rt.messages.GetRecent(ctx, message.RoomID, rt.AgentID(), recentMessageCount)
	if err != nil {
		return nil, err
	}

	goals, err := rt.repo.Goal().List(ctx, interfaces.GoalQuery{
		RoomID:         message.RoomID,
		OnlyInProgress: true,
		Count:          goalCount,
	})
	if err != nil {
		return nil, err
	}

	state := &model.State{
		AgentID:        string(rt.AgentID()),
		AgentName:      rt.character.Name,
		SenderName:     actorName(actors, message.UserID),
		RoomID:         string(message.RoomID),
		Bio:            rt.character.BioText(),
		Lore:           rt.character.LoreText(),
		Knowledge:      rt.composeKnowledge(ctx, message),
		Actors:         formatActors(actors),
		Goals:          formatGoals(goals),
		RecentMessages: formatMessages(recent, actors),
		RecentMemories: recent,
		Actions:        rt.registry.Describe(),
		ActionNames:    strings.Join(rt.registry.Names(), ", "),
		ActionExamples: rt.registry.ExamplesText(actionExampleCount),
	}

	var sections []string
	for _, p := range rt.providers {
		text, err := p.Provide(ctx, message, state)
		if err != nil {
			errutil.Handle(ctx, err, "provider failed, skipping")
			continue
		}
		if text != "" {
			sections = append(sections, text)
		}
	}
	state.Providers = strings.Join(sections, "\n")

	return state, nil
}

// composeKnowledge joins the character's static knowledge with facts
// retrieved by similarity against the inbound text.
func (rt *Runtime) composeKnowledge(ctx context.Context, message *model.Memory) string {
	parts := []string{}
	if k := rt.character.KnowledgeText(); k != "" {
		parts = append(parts, k)
	}

	if message.HasText() {
		facts, err := rt.facts.Search(ctx, message.Content.Text, interfaces.SearchQuery{
			RoomID:         message.RoomID,
			AgentID:        rt.AgentID(),
			MatchThreshold: factMatchThreshold,
			MatchCount:     factMatchCount,
			Unique:         true,
		})
		if err != nil {
			errutil.Handle(ctx, err, "fact retrieval failed, continuing without")
		}
		for _, f := range facts {
			parts = append(parts, f.Content.Text)
		}
	}

	return strings.Join(parts, "\n")
}

func actorName(actors []*model.Account, userID types.UserID) string {
	for _, a := range actors {
		if a.ID == userID {
			if a.Name != "" {
				return a.Name
			}
			return a.Username
		}
	}
	return string(userID)
}

func formatActors(actors []*model.Account) string {
	var lines []string
	for _, a := range actors {
		name := a.Name
		if name == "" {
			name = a.Username
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", name, a.ID))
	}
	if len(lines) == 0 {
		return ""
	}
	return prompt.AddHeader("# Actors in the scene", strings.Join(lines, "\n"))
}

// formatMessages renders oldest first so the prompt reads top to bottom.
func formatMessages(memories []*model.Memory, actors []*model.Account) string {
	var lines []string
	for i := len(memories) - 1; i >= 0; i-- {
		m := memories[i]
		line := fmt.Sprintf("%s: %s", actorName(actors, m.UserID), m.Content.Text)
		if m.Content.Action != "" && m.Content.Action != action.NameNone {
			line += fmt.Sprintf(" (%s)", m.Content.Action)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatGoals(goals []*model.Goal) string {
	var lines []string
	for _, g := range goals {
		lines = append(lines, fmt.Sprintf("- %s (%s)", g.Name, g.Status))
		for _, o := range g.Objectives {
			mark := " "
			if o.Completed {
				mark = "x"
			}
			lines = append(lines, fmt.Sprintf("  - [%s] %s", mark, o.Description))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return prompt.AddHeader("# Goals", strings.Join(lines, "\n"))
}
