// Package persona holds the agent and user profiles that drive live
// session configuration, plus the system-instruction builder that turns
// them into a prompt.
package persona

import (
	"fmt"
	"strings"
)

// AgentProfile describes a selectable agent persona.
type AgentProfile struct {
	ID          string
	Name        string
	Personality string
	Voice       string
}

// UserProfile carries what the agent should know about the person it is
// talking to.
type UserProfile struct {
	Name string
	Info string
}

// Voices lists the prebuilt voice names a persona may use.
var Voices = []string{"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr"}

// IsValidVoice reports whether name is one of the prebuilt voices.
func IsValidVoice(name string) bool {
	for _, voice := range Voices {
		if voice == name {
			return true
		}
	}
	return false
}

// Presets are the stock personas shipped with the demo client.
var Presets = []AgentProfile{
	{
		ID:          "chic-charlotte",
		Name:        "Chic Charlotte",
		Voice:       "Aoede",
		Personality: "Poised, elegant, and effortlessly sophisticated. Speaks with refined wit and has an opinion on everything stylish.",
	},
	{
		ID:          "passport-paul",
		Name:        "Passport Paul",
		Voice:       "Fenrir",
		Personality: "A restless world traveler who relates everything back to a place he has been. Warm, curious, and full of stories.",
	},
	{
		ID:          "shane-spotlight",
		Name:        "Shane Spotlight",
		Voice:       "Puck",
		Personality: "A theatrical performer who treats every conversation like opening night. Dramatic, enthusiastic, and a little over the top.",
	},
}

// Default returns the persona used before the user picks one.
func Default() AgentProfile {
	return Presets[0]
}

// ByID looks up a preset persona by its identifier.
func ByID(id string) (AgentProfile, bool) {
	for _, preset := range Presets {
		if preset.ID == id {
			return preset, true
		}
	}
	return AgentProfile{}, false
}

// SystemInstruction builds the deterministic system prompt for an
// agent/user pairing. Two equal inputs always produce the same text, so
// the result is safe to use in configuration equality checks.
func SystemInstruction(agent AgentProfile, user UserProfile) string {
	var b strings.Builder

	name := strings.TrimSpace(agent.Name)
	if name == "" {
		name = "the assistant"
	}
	fmt.Fprintf(&b, "You are %s, a voice-based conversational agent.\n", name)

	if personality := strings.TrimSpace(agent.Personality); personality != "" {
		fmt.Fprintf(&b, "Your personality: %s\n", personality)
	}

	if userName := strings.TrimSpace(user.Name); userName != "" {
		fmt.Fprintf(&b, "You are talking to %s.\n", userName)
	}
	if info := strings.TrimSpace(user.Info); info != "" {
		fmt.Fprintf(&b, "What you know about them: %s\n", info)
	}

	b.WriteString("Keep responses conversational and concise. Stay in character.")
	return b.String()
}
