package bot

import "github.com/Apurv-Arya/Advanced-Approver-Bot/internal/approve"

// selection is an operator's pending /approve menu: opaque callback
// tokens mapped to the chats they may pick. Rebuilt on every /approve and
// consumed by the first pick, so a stale menu cannot trigger a second run.
type selection struct {
	chats map[string]approve.EligibleChat
}
