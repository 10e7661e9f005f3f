package model

// State is the snapshot the runtime composes for one inbound message and
// feeds to the prompt composer. The formatted string fields are what
// templates interpolate; RecentMemories keeps the structured form for
// action validation.
type State struct {
	AgentID        string
	AgentName      string
	SenderName     string
	RoomID         string
	Bio            string
	Lore           string
	Knowledge      string
	Actors         string
	Goals          string
	RecentMessages string
	RecentMemories []*Memory
	Providers      string
	Attachments    string
	Actions        string
	ActionNames    string
	ActionExamples string
	Extra          map[string]string
}

// Map flattens the state into composer input. Extra entries win over the
// built-in keys so deployments can override any token.
func (s *State) Map() map[string]any {
	m := map[string]any{
		"agentId":        s.AgentID,
		"agentName":      s.AgentName,
		"senderName":     s.SenderName,
		"roomId":         s.RoomID,
		"bio":            s.Bio,
		"lore":           s.Lore,
		"knowledge":      s.Knowledge,
		"actors":         s.Actors,
		"goals":          s.Goals,
		"recentMessages": s.RecentMessages,
		"providers":      s.Providers,
		"attachments":    s.Attachments,
		"actions":        s.Actions,
		"actionNames":    s.ActionNames,
		"actionExamples": s.ActionExamples,
	}
	for k, v := range s.Extra {
		m[k] = v
	}
	return m
}
