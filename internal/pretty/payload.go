package pretty

import (
	"encoding/hex"
	"strings"

	"github.com/vipnode/locomux/loco"
)

// DefaultPayloadLen is the display length used by Payload when Max is zero.
const DefaultPayloadLen = 200

// Payload formats a frame body. BSON documents are shown as relaxed
// extended JSON, anything else as hex.
type Payload struct {
	Body []byte
	Max  int
}

func (p Payload) String() string {
	if len(p.Body) == 0 {
		return "{}"
	}
	max := p.Max
	if max <= 0 {
		max = DefaultPayloadLen
	}
	if doc, err := loco.Document(p.Body); err == nil {
		return Abbrev(doc, max).String()
	}
	return Abbrev("0x"+strings.ToLower(hex.EncodeToString(p.Body)), max).String()
}
