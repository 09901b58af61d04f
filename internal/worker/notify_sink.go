package worker

import (
	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/progress"
	"github.com/framelab/media-service/internal/websocket"
)

// NotifySink writes progress into the store and mirrors each snapshot to
// websocket subscribers. The encoder already throttles its emissions to
// whole-percent steps, so pushing on every write is cheap.
type NotifySink struct {
	store *progress.Store
	hub   *websocket.Hub
}

func NewNotifySink(store *progress.Store, hub *websocket.Hub) *NotifySink {
	return &NotifySink{store: store, hub: hub}
}

func (n *NotifySink) Register(key string) {
	n.store.Register(key)
}

func (n *NotifySink) Set(key string, kind model.TaskKind, percent float64) {
	n.store.Set(key, kind, percent)
	n.push(key)
}

func (n *NotifySink) MarkDone(key string, kind model.TaskKind) {
	n.store.MarkDone(key, kind)
	n.push(key)
}

func (n *NotifySink) FailTask(key string, kind model.TaskKind, err error) {
	n.store.FailTask(key, kind, err)
	n.push(key)
}

func (n *NotifySink) Complete(key string) {
	n.store.Complete(key)
	n.push(key)
}

func (n *NotifySink) FailJob(key string, err error) {
	n.store.FailJob(key, err)
	n.push(key)
}

func (n *NotifySink) Cancel(key string) {
	n.store.Cancel(key)
	n.push(key)
}

func (n *NotifySink) push(key string) {
	if job, err := n.store.Get(key); err == nil {
		n.hub.BroadcastProgress(key, job)
	}
}
