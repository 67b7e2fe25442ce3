package session

import "github.com/vango-go/vai-live/pkg/live/persona"

// Status is the controller-visible connection state. Transports may
// track finer-grained states internally; the controller only observes
// connected versus not.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

// GoogleSearchTool enables search grounding on a live session.
type GoogleSearchTool struct{}

// Tool is an optional capability attached to a session configuration.
type Tool struct {
	GoogleSearch *GoogleSearchTool
}

// Config is the configuration a live session should be running with
// right now. It is derived purely from the current profiles and the
// grounding toggle; equality is structural.
type Config struct {
	Voice             string
	SystemInstruction string
	Tools             []Tool
}

// DeriveConfig computes the desired session configuration from the
// current inputs. It is pure and must be called fresh on every
// evaluation; caching its result is how configurations go stale.
func DeriveConfig(agent persona.AgentProfile, user persona.UserProfile, grounding bool) Config {
	cfg := Config{
		Voice:             agent.Voice,
		SystemInstruction: persona.SystemInstruction(agent, user),
	}
	if grounding {
		cfg.Tools = []Tool{{GoogleSearch: &GoogleSearchTool{}}}
	}
	return cfg
}

// Equal reports structural equality between two configurations.
func (c Config) Equal(other Config) bool {
	if c.Voice != other.Voice || c.SystemInstruction != other.SystemInstruction {
		return false
	}
	if len(c.Tools) != len(other.Tools) {
		return false
	}
	for i := range c.Tools {
		if (c.Tools[i].GoogleSearch == nil) != (other.Tools[i].GoogleSearch == nil) {
			return false
		}
	}
	return true
}
