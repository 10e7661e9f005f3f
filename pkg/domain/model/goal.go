package model

import (
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// Objective is a checkable sub-item of a goal.
type Objective struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Goal is tracked per room and queried to bias response generation.
type Goal struct {
	ID         types.GoalID
	RoomID     types.RoomID
	UserID     types.UserID
	Name       string
	Status     types.GoalStatus
	Objectives []Objective
	CreatedAt  time.Time
}
