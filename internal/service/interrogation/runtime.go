package interrogation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/zhouzirui/z-interrogation/backend/internal/model/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
)

// maxStep caps a single tick after the loop was starved, so a stalled process
// does not fast-forward a whole line at once.
const maxStep = 250 * time.Millisecond

type command struct {
	apply func(*Scene) error
	reply chan error
}

// runtime owns one scene and the goroutine that drives it. Only the loop
// goroutine touches the scene; everything else goes through cmds.
type runtime struct {
	session  model.Session
	scene    *Scene
	interval time.Duration
	now      func() time.Time
	cmds     chan command
	done     chan struct{}
	cancel   context.CancelFunc

	mu         sync.RWMutex
	frame      Frame
	transcript []model.Entry
	subs       map[int]chan Frame
	nextSub    int
	closed     bool
}

func newRuntime(session model.Session, interval time.Duration, now func() time.Time) *runtime {
	return &runtime{
		session:    session,
		interval:   interval,
		now:        now,
		cmds:       make(chan command),
		done:       make(chan struct{}),
		transcript: make([]model.Entry, 0, 16),
		subs:       make(map[int]chan Frame),
	}
}

func (rt *runtime) start() {
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go rt.run(ctx)
}

func (rt *runtime) run(ctx context.Context) {
	defer close(rt.done)
	defer rt.shutdown()

	ticker := time.NewTicker(rt.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-rt.cmds:
			err := cmd.apply(rt.scene)
			rt.publish()
			cmd.reply <- err
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if dt > maxStep {
				dt = maxStep
			}
			rt.scene.Tick(dt)
			rt.publish()
		}
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (rt *runtime) do(ctx context.Context, fn func(*Scene) error) error {
	cmd := command{apply: fn, reply: make(chan error, 1)}
	select {
	case rt.cmds <- cmd:
	case <-rt.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *runtime) stop(ctx context.Context) error {
	rt.cancel()
	select {
	case <-rt.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record is the scene's line hook. It runs on the loop goroutine.
func (rt *runtime) record(turn dialogue.Turn) {
	entry := model.Entry{
		ID:        uuid.NewString(),
		SessionID: rt.session.ID,
		Speaker:   turn.Speaker.String(),
		Name:      turn.Name,
		Content:   turn.Text,
		Tags:      append([]string(nil), turn.Tags...),
		CreatedAt: rt.now().UTC(),
	}
	rt.mu.Lock()
	rt.transcript = append(rt.transcript, entry)
	rt.mu.Unlock()
}

func (rt *runtime) publish() {
	frame := rt.scene.Frame()
	frame.SessionID = rt.session.ID

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.frame = frame
	for _, ch := range rt.subs {
		// Frames carry full state: a slow reader only needs the newest one.
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

func (rt *runtime) subscribe() (<-chan Frame, func(), error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, nil, ErrSessionClosed
	}

	id := rt.nextSub
	rt.nextSub++
	ch := make(chan Frame, 4)
	ch <- rt.frame
	rt.subs[id] = ch

	unsubscribe := func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		if c, ok := rt.subs[id]; ok {
			delete(rt.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe, nil
}

func (rt *runtime) shutdown() {
	rt.scene.Close()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closed = true
	for id, ch := range rt.subs {
		delete(rt.subs, id)
		close(ch)
	}
	log.Printf("[session] loop stopped for session=%s", rt.session.ID)
}

func (rt *runtime) latest() Frame {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.frame
}

func (rt *runtime) entries() []model.Entry {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	copied := make([]model.Entry, len(rt.transcript))
	copy(copied, rt.transcript)
	return copied
}
