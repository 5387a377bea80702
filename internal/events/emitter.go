package events

import (
	"context"
	"log"
)

// EmitFunc delivers a stream lifecycle event to whatever front end is
// attached. The default discards events so headless use needs no setup.
type EmitFunc func(ctx context.Context, evt StreamEvent)

var Emit EmitFunc = func(ctx context.Context, evt StreamEvent) {}

func SetEmitter(f EmitFunc) {
	if f == nil {
		Emit = func(context.Context, StreamEvent) {}
		return
	}
	Emit = f
}

// EnableLogEmitter routes events to std log. Chunk events are skipped to
// keep the log readable at token rate.
func EnableLogEmitter() {
	Emit = func(ctx context.Context, evt StreamEvent) {
		if evt.Type == StreamChunk {
			return
		}
		if evt.Type == StreamError {
			log.Printf("stream %s session=%s message=%s: %s", evt.Type, evt.SessionID, evt.MessageID, evt.Message)
			return
		}
		log.Printf("stream %s session=%s message=%s", evt.Type, evt.SessionID, evt.MessageID)
	}
}
