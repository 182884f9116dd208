package feed

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Kind tags an item's subtype, attached at parse time.
type Kind int

const (
	KindOriginal Kind = iota
	KindReshare
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindReshare:
		return "reshare"
	case KindReply:
		return "reply"
	default:
		return "original"
	}
}

// classifyRules are evaluated in order; first matching prefix wins.
var classifyRules = []struct {
	prefix string
	kind   Kind
}{
	{prefix: "RT by ", kind: KindReshare},
	{prefix: "R to ", kind: KindReply},
}

func Classify(title string) Kind {
	for _, rule := range classifyRules {
		if strings.HasPrefix(title, rule.prefix) {
			return rule.kind
		}
	}
	return KindOriginal
}

type Item struct {
	Title       string
	Link        string
	Published   string // raw publish timestamp as given by the provider
	PublishTime time.Time
	Author      string
	Kind        Kind
}

// Feed is one fetched window of a source's items, newest first.
type Feed struct {
	Handle      string
	DisplayName string
	AvatarURL   string
	Items       []Item
}

// Fingerprint hashes the immutable identity fields of an item. Two
// items with the same publish timestamp and link are the same item.
func Fingerprint(item Item) string {
	sum := sha256.Sum256([]byte(item.Published + item.Link))
	return fmt.Sprintf("%x", sum)
}

// CanonicalHandle extracts the account handle from a feed title such
// as "Alice Doe / @alice".
func CanonicalHandle(feedTitle string) string {
	fields := strings.Fields(feedTitle)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "@")
}
