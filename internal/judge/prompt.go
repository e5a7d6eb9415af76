package judge

import (
	"fmt"
	"strings"

	"sift/internal/notify"
)

// Prompt shapes ported verbatim in intent: heavily biased toward DROP and
// NORMAL so the judge only overrides the rules in genuinely urgent cases.

func classifyPrompt(n *notify.Notification) string {
	return fmt.Sprintf(`You are filtering notifications for SMS forwarding. Each SMS costs money.
Only SEND if the message requires IMMEDIATE attention or is time-sensitive.
When in doubt, DROP. The user can check their phone later for non-urgent things.

App: %s
From: %s
Message: %s

SEND - worth the cost (urgent, time-sensitive, requires action):
- Someone asking to meet up or make plans -> SEND
- Direct question needing a response -> SEND
- Client reporting a problem -> SEND
- Someone needs help or is waiting -> SEND

DROP - not worth it (can wait, noise, FYI only):
- Group chat banter, reactions, "lol", "haha" -> DROP
- Sharing memes, links, photos to look at later -> DROP
- News, updates, announcements -> DROP
- Social media engagement notifications -> DROP
- Marketing, newsletters, receipts -> DROP
- "Thanks", "OK", acknowledgments -> DROP

Classify this notification. Answer only SEND or DROP:
App: %s
From: %s
Message: %s
Answer:`, n.Source, n.Title, n.Body, n.Source, n.Title, n.Body)
}

func customClassifyPrompt(n *notify.Notification, instruction string) string {
	return fmt.Sprintf(`You are filtering notifications. %s

App: %s
From: %s
Message: %s

Based on the above criteria, should this notification be forwarded?
Answer with a single word: SEND or DROP`, instruction, n.Source, n.Title, n.Body)
}

func urgencyPrompt(n *notify.Notification, isGroup bool) string {
	groupHint := ""
	if isGroup {
		groupHint = "This is a GROUP CHAT - group messages are NEVER urgent. Answer NORMAL.\n\n"
	}
	return fmt.Sprintf(`Classify this chat message. Answer NORMAL unless there is a genuine emergency.

URGENT (extremely rare - genuine emergencies only):
- Someone in physical danger or medical emergency
- "Help", "call 999", "I'm hurt", "accident"
- Explicit "call me NOW it's urgent"

NORMAL (99%% of messages - the default):
- Questions: "how are you?", "what's up?", "you there?", "are you coming?"
- Chat: jokes, memes, banter, reactions, emojis
- Sharing: photos, links, videos, articles
- Updates: "I'm here", "on my way", "running late"
- Opinions, stories, venting, complaining
- ANY group chat message (groups are never urgent)
- "Where are you" without explicit distress
- Anything that can wait 1 hour

%sMessage from %s:
%s

Answer NORMAL or URGENT (almost always NORMAL):`, groupHint, n.Title, truncate(n.Body, 200))
}

func batchUrgencyPrompt(batch []*notify.Notification) string {
	var lines strings.Builder
	for i, n := range batch {
		fmt.Fprintf(&lines, "%d. From %s: %s\n", i+1, n.Title, truncate(n.Body, 150))
	}
	return fmt.Sprintf(`Classify these chat messages. Answer NORMAL unless there is a genuine emergency.

URGENT (extremely rare - genuine emergencies only):
- Someone in physical danger or medical emergency
- "Help", "call 999", "I'm hurt", "accident"
- Explicit "call me NOW it's urgent"

NORMAL (99%% of messages - the default):
- Questions, casual chat, sharing links/photos
- Updates like "on my way", "running late"
- Anything that can wait 1 hour

Messages to classify:
%s
For each message, answer with just the number and NORMAL or URGENT.
Example format:
1. NORMAL
2. NORMAL
3. URGENT

Your answers:`, lines.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
