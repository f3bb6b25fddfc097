package metadata

import (
	"strconv"
	"time"
)

// Header keys of the request/reply contract. Downstream services copy
// KeyCorrelationID from the request onto their reply and publish it to the
// topic named by KeyReplyTo. The key casing is part of the wire contract and
// must not change.
const (
	KeyCorrelationID = "correlationId"
	KeyReplyTo       = "replyTo"
	KeySentAt        = "sentAt"
)

// ForRequest builds the outgoing header set for a request envelope. An empty
// replyTo omits the reply-routing header (fire-and-forget publishes).
func ForRequest(correlationID, replyTo string, sentAt time.Time) Metadata {
	md := New(
		KeyCorrelationID, correlationID,
		KeySentAt, strconv.FormatInt(sentAt.UnixMilli(), 10),
	)
	if replyTo != "" {
		md[KeyReplyTo] = replyTo
	}
	return md
}
