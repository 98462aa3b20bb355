package bizAuth

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/audit"
)

// AuditEvent is one security-relevant occurrence emitted by the engine.
type AuditEvent = audit.Event

// AuditEventType names an audit event; AuditCategory groups event types.
type (
	AuditEventType = audit.EventType
	AuditCategory  = audit.Category
)

// AuditSink receives audit events from the engine's background dispatcher.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs audit events through logger under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
