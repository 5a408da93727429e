package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
)

const (
	eventBoard        = "board"
	eventNotification = "notification"
	eventPing         = "ping"
)

type streamEvent struct {
	name string
	data any
}

// HandleStream sends the board and the session's notifications as
// server-sent events until the client goes away. A client that falls
// behind misses intermediate snapshots; the next one supersedes them.
func (h *handlerImpl) HandleStream(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	events := make(chan streamEvent, 32)
	send := func(e streamEvent) {
		select {
		case events <- e:
		default:
		}
	}

	stopWatch := b.Watch(func(tasks []models.Task) {
		send(streamEvent{
			name: eventBoard,
			data: newBoardSnapshot(false, tasks, b.PendingMutations()),
		})
	})
	defer stopWatch()

	stopNotify := b.Subscribe(func(n notify.Notification) {
		send(streamEvent{name: eventNotification, data: n})
	})
	defer stopNotify()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(eventBoard, newBoardResponse(b))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Msg("stream client went away")
			return
		case e := <-events:
			c.SSEvent(e.name, e.data)
		case t := <-heartbeat.C:
			c.SSEvent(eventPing, t.Unix())
		}
		c.Writer.Flush()
	}
}
