package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

// Prompt is a rendered system+user pair.
type Prompt struct {
	Name    string
	Version int
	System  string
	User    string
}

// Fingerprint identifies the exact rendered text, so a stored hint can be
// traced back to the prompt that produced it.
func (p Prompt) Fingerprint() string {
	h := sha256.Sum256([]byte(
		strings.TrimSpace(p.Name) + "|" +
			strconv.Itoa(p.Version) + "|" +
			strings.TrimSpace(p.System) + "|" +
			strings.TrimSpace(p.User),
	))
	return hex.EncodeToString(h[:])
}

func (p Prompt) Messages() []engine.Message {
	out := make([]engine.Message, 0, 2)
	if s := strings.TrimSpace(p.System); s != "" {
		out = append(out, engine.Message{Role: engine.RoleSystem, Content: s})
	}
	return append(out, engine.Message{Role: engine.RoleUser, Content: strings.TrimSpace(p.User)})
}
