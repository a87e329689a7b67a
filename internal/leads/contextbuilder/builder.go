// Package contextbuilder assembles the completion input for one reply: who
// the bot is, what it knows about the plan, what it knows about the lead,
// and the recent conversation. Segment order is fixed; empty segments are
// omitted.
package contextbuilder

import (
	"fmt"
	"strings"
	"time"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/knowledge"
	"zapleads_backend/internal/leads/repository"
)

type Input struct {
	Persona      string
	Knowledge    []knowledge.Entry
	Memories     []repository.Memory
	Lead         repository.Lead
	History      []repository.Message
	Current      string
	Now          time.Time
	HistoryTurns int
}

// Build returns the ordered completion messages: one system turn with the
// persona and all context segments, the recent history as user/model turns,
// and the current message last.
func Build(in Input) []ai.Message {
	turns := in.HistoryTurns
	if turns <= 0 {
		turns = 15
	}

	var system []string
	if persona := strings.TrimSpace(in.Persona); persona != "" {
		system = append(system, persona)
	}
	if seg := knowledgeSegment(in.Knowledge); seg != "" {
		system = append(system, seg)
	}
	if seg := memorySegment(in.Memories); seg != "" {
		system = append(system, seg)
	}
	system = append(system, timeSegment(in.Now))
	system = append(system, profileSegment(in.Lead))

	messages := []ai.Message{{Role: ai.RoleSystem, Text: strings.Join(system, "\n\n")}}

	history := in.History
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	for _, msg := range history {
		text := messageText(msg)
		if text == "" {
			continue
		}
		role := ai.RoleUser
		if msg.Direction == repository.DirectionOutbound {
			role = ai.RoleModel
		}
		messages = append(messages, ai.Message{Role: role, Text: text})
	}

	messages = append(messages, ai.Message{Role: ai.RoleUser, Text: in.Current})
	return messages
}

// MergeKnowledge unions the search hits with the top-ranked entries,
// preserving order and dropping duplicates.
func MergeKnowledge(search, top []knowledge.Entry) []knowledge.Entry {
	merged := make([]knowledge.Entry, 0, len(search)+len(top))
	seen := make(map[string]struct{}, len(search)+len(top))
	for _, entry := range append(append([]knowledge.Entry{}, search...), top...) {
		key := entry.ID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, entry)
	}
	return merged
}

// knowledgeSegment groups entries by category so related facts sit together.
func knowledgeSegment(entries []knowledge.Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var order []string
	grouped := make(map[string][]knowledge.Entry)
	for _, entry := range entries {
		if _, ok := grouped[entry.Category]; !ok {
			order = append(order, entry.Category)
		}
		grouped[entry.Category] = append(grouped[entry.Category], entry)
	}

	var b strings.Builder
	b.WriteString("What you know about the product:")
	for _, category := range order {
		fmt.Fprintf(&b, "\n\n[%s]", category)
		for _, entry := range grouped[category] {
			fmt.Fprintf(&b, "\n- %s: %s", entry.Title, entry.Content)
		}
	}
	return b.String()
}

func memorySegment(memories []repository.Memory) string {
	if len(memories) == 0 {
		return ""
	}

	var order []string
	grouped := make(map[string][]repository.Memory)
	for _, mem := range memories {
		kind := memoryKind(mem.Key)
		if _, ok := grouped[kind]; !ok {
			order = append(order, kind)
		}
		grouped[kind] = append(grouped[kind], mem)
	}

	var b strings.Builder
	b.WriteString("What you remember about this lead:")
	for _, kind := range order {
		fmt.Fprintf(&b, "\n\n[%s]", kind)
		for _, mem := range grouped[kind] {
			fmt.Fprintf(&b, "\n- %s: %s", mem.Key, mem.Value)
		}
	}
	return b.String()
}

// memoryKind is the namespace prefix of a memory key ("family.elderly" is
// kind "family").
func memoryKind(key string) string {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i]
	}
	return "general"
}

func timeSegment(now time.Time) string {
	var bucket string
	switch hour := now.Hour(); {
	case hour < 6:
		bucket = "late night"
	case hour < 12:
		bucket = "morning"
	case hour < 18:
		bucket = "afternoon"
	default:
		bucket = "evening"
	}
	return "It is currently " + bucket + " for the lead. Greet accordingly."
}

// profileSegment tells the model which profile fields are known so it never
// asks for something the lead already gave.
func profileSegment(lead repository.Lead) string {
	var known, missing []string

	appendField := func(label string, value *string) {
		if value != nil && strings.TrimSpace(*value) != "" {
			known = append(known, label+": "+*value)
		} else {
			missing = append(missing, label)
		}
	}
	appendField("name", lead.Name)
	appendField("email", lead.Email)
	appendField("city", lead.City)

	var b strings.Builder
	b.WriteString("Lead profile.")
	if len(known) > 0 {
		b.WriteString("\nKnown (never ask for these again):")
		for _, field := range known {
			b.WriteString("\n- " + field)
		}
	}
	if len(missing) > 0 {
		b.WriteString("\nStill unknown (you may ask naturally, one at a time): " + strings.Join(missing, ", "))
	}
	return b.String()
}

func messageText(msg repository.Message) string {
	if msg.Transcription != nil && *msg.Transcription != "" {
		return *msg.Transcription
	}
	if msg.Body != nil {
		return *msg.Body
	}
	return ""
}
